package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ObservatoireDelinquance/src/dashboard"
	"ObservatoireDelinquance/src/datasource/file"
	"ObservatoireDelinquance/src/datasource/geo"
	"ObservatoireDelinquance/src/processor"
	"ObservatoireDelinquance/src/storage"
	"ObservatoireDelinquance/src/utils"
)

const shutdownTimeout = 10 * time.Second

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func cleanCmd(a *app) *cobra.Command {
	var (
		rawPath, refPath, outPath, dbPath string
		exportXLSX, toSQLite              bool
	)
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Nettoie le fichier SSMSI brut et écrit le CSV consolidé",
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		cfg, dc, logger := a.cfg, a.dc, a.logger
		if rawPath == "" {
			rawPath = a.dataFile(cfg.RawFile)
		}
		if refPath == "" {
			refPath = a.dataFile(cfg.CommuneRefFile)
		}
		if outPath == "" {
			outPath = cfg.DataPath()
		}
		if dbPath == "" {
			dbPath = cfg.DBPath
		}
		if !cmd.Flags().Changed("xlsx") {
			exportXLSX = cfg.Clean.ExportXLSX
		}

		logger.Info("读取原始文件", zap.String("path", rawPath))
		df, err := file.ReadRaw(rawPath, file.ReadOptions{SheetName: cfg.Clean.SheetName, HeaderRow: cfg.Clean.HeaderRow})
		if err != nil {
			return err
		}

		p := processor.NewDataProcessor(df, dc).WithLogger(logger)
		// 参考表可选, 缺失时只用原始文件中的名称
		communes, err := file.ReadCommuneRef(refPath, dc.GetAlias)
		switch {
		case err == nil:
			p.WithCommunes(communes)
			logger.Info("市镇参考表", zap.String("path", refPath), zap.Int("communes", len(communes)))
		case errors.Is(err, file.ErrDataFileMissing) && !cmd.Flags().Changed("ref"):
			logger.Warning("未找到市镇参考表, 跳过", zap.String("path", refPath))
		default:
			return err
		}

		if err := p.CleanData(); err != nil {
			return err
		}

		out := p.DataFrame()
		if err := file.WriteCSV(out, outPath); err != nil {
			return fmt.Errorf("写出CSV失败: %w", err)
		}
		logger.Info("CSV已写出", zap.String("path", outPath), zap.Int("rows", out.Nrow()))

		if exportXLSX {
			xlsxPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".xlsx"
			if err := utils.SaveToExcel(out, xlsxPath); err != nil {
				return fmt.Errorf("写出XLSX失败: %w", err)
			}
			logger.Info("XLSX已写出", zap.String("path", xlsxPath))
		}

		if toSQLite {
			db, err := storage.OpenSQLite(dbPath)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := storage.NewRecordStore(db).SaveRecords(cmd.Context(), p.Records()); err != nil {
				return err
			}
			logger.Info("SQLite已写入", zap.String("path", dbPath))
		}
		return printJSON(cmd, p.Report())
	})

	f := cmd.Flags()
	f.StringVar(&rawPath, "raw", "", "fichier SSMSI brut (.csv ou .xlsx)")
	f.StringVar(&refPath, "ref", "", "référentiel des communes (CSV)")
	f.StringVar(&outPath, "out", "", "CSV consolidé en sortie")
	f.BoolVar(&exportXLSX, "xlsx", false, "écrit aussi une copie XLSX")
	f.BoolVar(&toSQLite, "sqlite", false, "écrit aussi les lignes dans SQLite")
	f.StringVar(&dbPath, "db", "", "base SQLite (défaut: db_path)")
	return cmd
}

func loadDBCmd(a *app) *cobra.Command {
	var csvPath, dbPath string
	cmd := &cobra.Command{
		Use:   "load-db",
		Short: "Charge le CSV consolidé dans SQLite",
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		if csvPath == "" {
			csvPath = a.cfg.DataPath()
		}
		if dbPath == "" {
			dbPath = a.cfg.DBPath
		}

		records, err := file.ReadConsolidated(csvPath)
		if err != nil {
			return err
		}
		db, err := storage.OpenSQLite(dbPath)
		if err != nil {
			return err
		}
		defer closeDB(db)

		if err := storage.NewRecordStore(db).SaveRecords(cmd.Context(), records); err != nil {
			return err
		}
		a.logger.Info("SQLite已写入", zap.String("path", dbPath), zap.Int("rows", len(records)))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d lignes chargées dans %s\n", len(records), dbPath)
		return err
	})
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV consolidé (défaut: data_dir/data_file)")
	cmd.Flags().StringVar(&dbPath, "db", "", "base SQLite (défaut: db_path)")
	return cmd
}

func diagnoseCmd(a *app) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Compare les régions du CSV et du GeoJSON",
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		records, err := file.ReadConsolidated(a.cfg.DataPath())
		if err != nil {
			return err
		}
		fc, err := geo.LoadGeoJSON(a.cfg.GeoJSONPath())
		if err != nil {
			return err
		}
		norm, key := geo.WithNormNames(fc, a.dc.GeoKeys)

		metrics := processor.BuildRegionMetrics(records)
		if year != 0 {
			metrics = processor.MetricsForYear(metrics, year)
		}
		return printJSON(cmd, map[string]interface{}{
			"geojson_key": key,
			"diagnostics": geo.MatchingDiagnostics(metrics, norm),
		})
	})
	cmd.Flags().IntVar(&year, "year", 0, "année (0: toutes)")
	return cmd
}

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Lance le tableau de bord",
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		cfg, logger := a.cfg, a.logger
		if addr == "" {
			addr = cfg.Server.Addr
		}

		var records storage.RecordStore
		if cfg.Source == "sqlite" {
			db, err := storage.OpenSQLite(cfg.DBPath)
			if err != nil {
				return err
			}
			defer closeDB(db)
			records = storage.NewRecordStore(db)
		}

		store := dashboard.NewStore(dashboard.FileLoader(cfg, a.dc, records), logger)
		srv, err := dashboard.NewServer(store, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// 没有数据时不启动
		if err := srv.Reload(ctx); err != nil {
			return err
		}

		c := cron.New()
		maxBytes := cfg.LogMaxBytes()
		if err := c.AddFunc(cfg.Server.RotateSpec, func() {
			rotated, err := logger.CheckRotate(maxBytes)
			if err != nil {
				logger.Error("日志轮转失败", zap.Error(err))
			} else if rotated {
				logger.Info("日志已轮转", zap.Int64("max_bytes", maxBytes))
			}
		}); err != nil {
			return fmt.Errorf("创建定时任务失败: %w", err)
		}
		if interval := time.Duration(cfg.Server.ReloadInterval); interval > 0 {
			if err := c.AddFunc("@every "+interval.String(), func() {
				_ = srv.Reload(ctx)
			}); err != nil {
				return fmt.Errorf("创建定时任务失败: %w", err)
			}
		}
		c.Start()
		defer c.Stop()

		if cfg.Source != "sqlite" {
			monitor, err := file.NewFileMonitor(cfg.DataPath())
			if err != nil {
				return err
			}
			defer monitor.Close()
			go func() {
				err := monitor.Watch(ctx, func(path string) {
					logger.Info("数据文件已更新, 重新加载", zap.String("path", path))
					_ = srv.Reload(ctx)
				})
				if err != nil {
					logger.Error("文件监控出错", zap.Error(err))
				}
			}()
		}

		// SIGHUP 重新打开日志文件
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-hup:
					if err := logger.Reopen(cfg.LogName); err != nil {
						fmt.Fprintln(os.Stderr, "reopen log:", err)
						continue
					}
					logger.Info("日志文件已重新打开")
				case <-ctx.Done():
					return
				}
			}
		}()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(addr) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("收到退出信号, 正在关闭...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	cmd.Flags().StringVar(&addr, "addr", "", "adresse d'écoute (défaut: server.addr)")
	return cmd
}
