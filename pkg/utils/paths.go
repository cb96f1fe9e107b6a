package utils

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDataDirName 用户级数据目录名（位于 $HOME 下）
const DefaultDataDirName = ".timetrack"

// DefaultDataDir 返回用户级数据目录；无法获取 HOME 时退回当前目录
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, DefaultDataDirName)
}

// ExpandPath 将 ~/、file:/// URI 以及相对路径统一转换为本地绝对路径
func ExpandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}

	if strings.HasPrefix(p, "file://") {
		u, err := url.Parse(p)
		if err == nil {
			p = u.Path
			// Windows 处理: /C:/foo -> C:/foo
			if os.PathSeparator == '\\' && len(p) > 2 && p[0] == '/' && p[2] == ':' {
				p = p[1:]
			}
		}
	}

	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

// ResolveIn 相对路径按 base 解析，绝对路径原样返回
func ResolveIn(base, p string) string {
	if p == "" {
		return p
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "~") || strings.HasPrefix(p, "file://") {
		return ExpandPath(p)
	}
	return filepath.Join(base, p)
}
