package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置: 数据文件位置、服务地址、日志
type Config struct {
	DataDir        string `json:"data_dir"`         // 数据目录
	DataFile       string `json:"data_file"`        // 清洗后的CSV
	GeoJSONFile    string `json:"geojson_file"`     // 区域边界
	RawFile        string `json:"raw_file"`         // SSMSI原始文件
	CommuneRefFile string `json:"commune_ref_file"` // 市镇参考表
	Source         string `json:"source"`           // csv | sqlite
	DBPath         string `json:"db_path"`
	LogName        string `json:"log_name"`
	LogMaxSize     string `json:"log_max_size"` // "10 * 1024 * 1024"

	Server struct {
		Addr           string   `json:"addr"`
		ReloadInterval Duration `json:"reload_interval"`
		RotateSpec     string   `json:"rotate_spec"` // cron表达式
	} `json:"server"`

	Clean struct {
		SheetName  string `json:"sheet_name"` // xlsx原始文件的工作表
		HeaderRow  int    `json:"header_row"`
		ExportXLSX bool   `json:"export_xlsx"`
	} `json:"clean"`
}

// SizeBracket 人口分档, 上限不含
type SizeBracket struct {
	Label string  `json:"label"`
	Upper float64 `json:"upper"` // 0 表示无上限
}

// DataConfig 数据清洗规则
type DataConfig struct {
	Categories    map[string]string `json:"categories"`     // 规范化指标名 -> 五大类
	Keywords      map[string]string `json:"keywords"`       // 关键字 -> 五大类
	SizeBrackets  []SizeBracket     `json:"size_brackets"`  // 人口分档
	ColumnAliases map[string]string `json:"column_aliases"` // 别名 -> 标准列名
	GeoKeys       []string          `json:"geojson_keys"`   // GeoJSON区域名候选键
	SearchLimit   int               `json:"search_limit"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// LoadConfig 只加载一次; 缺失的文件使用默认值, 然后读取 .env 覆盖
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
		if err == nil {
			_ = godotenv.Load(filepath.Join(jsonFolder, ".env"), ".env")
			ApplyEnv(instance)
		}
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	return waitForResults(cfgChan, dcfgChan, errChan)
}

// readFile 文件不存在时返回 nil, 由默认值兜底
func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, cfg); err != nil {
			errChan <- fmt.Errorf("解析Config失败: %w", err)
			return
		}
	}
	resultChan <- cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	dcfg := DefaultDataConfig()
	if len(data) > 0 {
		var override DataConfig
		if err := json.Unmarshal(data, &override); err != nil {
			errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
			return
		}
		dcfg.merge(&override)
	}
	resultChan <- dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg  *Config
		dcfg *DataConfig
		errs []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

// ApplyEnv 环境变量覆盖 (OBS_*)
func ApplyEnv(cfg *Config) {
	overrides := map[string]*string{
		"OBS_DATA_DIR":     &cfg.DataDir,
		"OBS_DATA_FILE":    &cfg.DataFile,
		"OBS_GEOJSON_FILE": &cfg.GeoJSONFile,
		"OBS_ADDR":         &cfg.Server.Addr,
		"OBS_DB_PATH":      &cfg.DBPath,
		"OBS_LOG_NAME":     &cfg.LogName,
		"OBS_SOURCE":       &cfg.Source,
	}
	for key, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*field = v
		}
	}
}

// DataPath 清洗后的CSV路径
func (c *Config) DataPath() string {
	return filepath.Join(c.DataDir, c.DataFile)
}

// GeoJSONPath 区域边界文件路径
func (c *Config) GeoJSONPath() string {
	return filepath.Join(c.DataDir, c.GeoJSONFile)
}

// LogMaxBytes 解析 "10 * 1024 * 1024" 形式的大小
func (c *Config) LogMaxBytes() int64 {
	parts := strings.Split(c.LogMaxSize, "*")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0
		}
		result *= num
	}
	return result
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (dc *DataConfig) merge(o *DataConfig) {
	for k, v := range o.Categories {
		dc.Categories[k] = v
	}
	for k, v := range o.Keywords {
		dc.Keywords[k] = v
	}
	for k, v := range o.ColumnAliases {
		dc.ColumnAliases[k] = v
	}
	if len(o.SizeBrackets) > 0 {
		dc.SizeBrackets = o.SizeBrackets
	}
	if len(o.GeoKeys) > 0 {
		dc.GeoKeys = o.GeoKeys
	}
	if o.SearchLimit > 0 {
		dc.SearchLimit = o.SearchLimit
	}
}

func (dc *DataConfig) GetCategory(normLabel string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := dc.Categories[normLabel]
	return c, ok
}

func (dc *DataConfig) SetCategory(normLabel, category string) {
	mu.Lock()
	defer mu.Unlock()
	dc.Categories[normLabel] = category
}

func (dc *DataConfig) GetAlias(col string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := dc.ColumnAliases[col]
	return c, ok
}
