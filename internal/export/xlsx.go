// Package export renders ranking snapshots as XLSX workbooks for the
// monthly operations report.
package export

import (
	"context"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/rankboard/internal/apperr"
	"github.com/sells-group/rankboard/internal/model"
	"github.com/sells-group/rankboard/internal/store"
)

var snapshotHeader = []string{"排名", "应用名称", "单位", "得分", "标签", "价值维度", "30日使用", "点赞", "快照日期"}

// Exporter writes snapshot workbooks from the store.
type Exporter struct {
	store store.Store
}

func New(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// WriteReport writes one sheet per config id to w. An empty periodDate
// exports each config's most recent snapshot. Configs without any
// snapshot produce a header-only sheet.
func (e *Exporter) WriteReport(ctx context.Context, w io.Writer, configIDs []string, periodDate string) error {
	if len(configIDs) == 0 {
		configs, err := e.store.ListConfigs(ctx, true)
		if err != nil {
			return eris.Wrap(err, "export: list configs")
		}
		for _, cfg := range configs {
			configIDs = append(configIDs, cfg.ID)
		}
	}
	if len(configIDs) == 0 {
		return apperr.Validationf("configs", "no ranking configs to export")
	}

	f := xlsx.NewFile()
	for _, id := range configIDs {
		cfg, err := e.store.GetConfig(ctx, id)
		if err != nil {
			return err
		}
		entries, err := e.store.GetSnapshot(ctx, id, periodDate)
		if err != nil {
			return eris.Wrap(err, "export: get snapshot")
		}
		if err := addSheet(f, cfg.Name, entries); err != nil {
			return err
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func addSheet(f *xlsx.File, name string, entries []model.SnapshotEntry) error {
	// Sheet names are capped at 31 characters by the file format.
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range snapshotHeader {
		header.AddCell().SetString(h)
	}

	for _, e := range entries {
		row := sheet.AddRow()
		row.AddCell().SetInt(e.Position)
		row.AddCell().SetString(e.AppName)
		row.AddCell().SetString(e.AppOrg)
		row.AddCell().SetString(strconv.FormatFloat(e.Score, 'f', 2, 64))
		row.AddCell().SetString(e.Tag)
		row.AddCell().SetString(string(e.ValueDimension))
		row.AddCell().SetInt(e.Usage30d)
		row.AddCell().SetInt(e.Likes)
		row.AddCell().SetString(e.PeriodDate)
	}
	return nil
}
