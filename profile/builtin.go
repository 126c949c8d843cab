package profile

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/ByLCY/dmsheet/labels"
)

//go:embed builtin/*.profile
var builtinFS embed.FS

const builtinExt = ".profile"

// Builtin 返回内置配置 name（不区分大小写）。
func Builtin(name string) (labels.Config, error) {
	file, err := builtinFS.Open(path.Join("builtin", strings.ToLower(name)+builtinExt))
	if err != nil {
		return labels.Config{}, fmt.Errorf("未知的内置配置 %q，可选：%s", name, strings.Join(BuiltinNames(), ", "))
	}
	defer file.Close()
	return Load(file)
}

// BuiltinNames lists the embedded profiles.
func BuiltinNames() []string {
	entries, _ := fs.ReadDir(builtinFS, "builtin")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), builtinExt))
	}
	sort.Strings(names)
	return names
}

// Resolve 按路径加载配置；路径不存在时回退到同名内置配置，空字符串返回默认配置。
func Resolve(ref string) (labels.Config, error) {
	if ref == "" {
		return labels.DefaultConfig(), nil
	}
	if _, err := os.Stat(ref); err == nil {
		return LoadFile(ref)
	}
	return Builtin(strings.TrimSuffix(ref, builtinExt))
}
