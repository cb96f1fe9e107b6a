package protocol

import (
	"github.com/bytedance/sonic"
)

// Codec 命令与状态的 JSON 编解码
type Codec interface {
	Encode(any) ([]byte, error)
	Decode([]byte, any) error
}

// SonicCodec 基于 sonic 的默认实现，输出紧凑且字段顺序与结构体一致
type SonicCodec struct{}

// NewSonicCodec 创建默认编解码器
func NewSonicCodec() *SonicCodec { return &SonicCodec{} }

func (*SonicCodec) Encode(v any) ([]byte, error) {
	return sonic.ConfigStd.Marshal(v)
}

func (*SonicCodec) Decode(data []byte, v any) error {
	return sonic.ConfigStd.Unmarshal(data, v)
}
