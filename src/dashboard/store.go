package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"

	"ObservatoireDelinquance/src/config"
	"ObservatoireDelinquance/src/datasource/file"
	"ObservatoireDelinquance/src/datasource/geo"
	"ObservatoireDelinquance/src/models"
	"ObservatoireDelinquance/src/processor"
	"ObservatoireDelinquance/src/storage"
)

// Snapshot 一次加载的只读数据
type Snapshot struct {
	Records  []models.Record
	Metrics  []models.RegionMetric
	Years    []int
	Regions  []string
	Index    *processor.CommuneIndex
	Geo      *geojson.FeatureCollection // 每个要素带 region_norm
	GeoKey   string
	Overview processor.Overview
	Source   string
	LoadedAt time.Time
}

// LatestYear 最新年份, 无数据时为0
func (s *Snapshot) LatestYear() int {
	if len(s.Years) == 0 {
		return 0
	}
	return s.Years[len(s.Years)-1]
}

// NewSnapshot 由记录预先计算各视图共用的表
func NewSnapshot(records []models.Record, fc *geojson.FeatureCollection, dc *config.DataConfig) *Snapshot {
	metrics := processor.BuildRegionMetrics(records)
	norm, key := geo.WithNormNames(fc, dc.GeoKeys)

	communes := map[string]bool{}
	for _, r := range records {
		communes[r.Codgeo] = true
	}
	s := &Snapshot{
		Records:  records,
		Metrics:  metrics,
		Years:    processor.Years(records),
		Regions:  processor.Regions(metrics),
		Index:    processor.NewCommuneIndex(records, dc.SearchLimit),
		Geo:      norm,
		GeoKey:   key,
		LoadedAt: time.Now(),
	}
	s.Overview = processor.Overview{
		Rows:     len(records),
		Columns:  len(file.ConsolidatedColumns),
		Communes: len(communes),
		Regions:  len(s.Regions),
		Years:    s.Years,
		Created:  processor.CreatedColumns,
	}
	return s
}

// Loader 生成新的快照
type Loader func(ctx context.Context) (*Snapshot, error)

// FileLoader 读取合并后的CSV (cfg.Source 为 "sqlite" 时读SQLite) 和 GeoJSON 边界
func FileLoader(cfg *config.Config, dc *config.DataConfig, db storage.RecordStore) Loader {
	return func(ctx context.Context) (*Snapshot, error) {
		fc, err := geo.LoadGeoJSON(cfg.GeoJSONPath())
		if err != nil {
			return nil, err
		}

		if cfg.Source == "sqlite" && db != nil {
			records, err := db.LoadRecords(ctx)
			if err != nil {
				return nil, fmt.Errorf("load sqlite records: %w", err)
			}
			s := NewSnapshot(records, fc, dc)
			s.Source = "sqlite"
			return s, nil
		}

		df, err := file.ReadCSV(cfg.DataPath())
		if err != nil {
			return nil, err
		}
		records, err := file.RecordsFromDataFrame(df)
		if err != nil {
			return nil, err
		}
		s := NewSnapshot(records, fc, dc)
		s.Source = cfg.DataPath()
		s.Overview.Rows = df.Nrow()
		s.Overview.Columns = df.Ncol()
		s.Overview.Dictionary = processor.DescribeColumns(df)
		return s, nil
	}
}

// Store 持有当前快照, Reload 时整体替换
type Store struct {
	mu       sync.RWMutex
	reloadMu sync.Mutex // 串行化加载与替换, 后发起的加载总是最后生效
	snap     *Snapshot
	load   Loader
	logger *storage.Logger
}

func NewStore(load Loader, logger *storage.Logger) *Store {
	return &Store{load: load, logger: logger}
}

// NewStaticStore 固定快照, Reload 不改变它
func NewStaticStore(s *Snapshot) *Store {
	return &Store{snap: s, load: func(context.Context) (*Snapshot, error) { return s, nil }}
}

func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Reload 加载新快照, 失败时保留旧快照
func (s *Store) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	snap, err := s.load(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("rechargement des données échoué: %v", err))
		return err
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.logger.Info(fmt.Sprintf("données chargées: %d lignes, %d régions, %v", len(snap.Records), len(snap.Regions), time.Since(start)))
	return nil
}
