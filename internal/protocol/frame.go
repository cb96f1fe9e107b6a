package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"timetrack-go/internal/core"
)

// MaxFrameSize 单帧负载上限
const MaxFrameSize = 1 << 20

// WriteFrame 写入 4 字节大端长度前缀 + 负载
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return core.ProtocolErr("write frame", fmt.Errorf("payload of %d bytes exceeds %d", len(payload), MaxFrameSize))
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame 读取一帧；超长帧为协议错误，对端关闭返回 io.EOF
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, core.ProtocolErr("read frame", fmt.Errorf("frame of %d bytes exceeds %d", size, MaxFrameSize))
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
