package internal

import (
	"github.com/DreamCats/docqa/internal/config"
)

// LoadConfig 从指定路径读取并解析 YAML 配置文件。
// 返回填充后的 *config.Config 或解析错误。
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}
