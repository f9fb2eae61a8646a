package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/avmeta/internal/config"
	"github.com/John-Robertt/avmeta/internal/domain"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isTerminal 只对真实的 *os.File 判断；测试注入的 buffer 一律视为非 TTY。
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// emitReport：stdout 是 TTY 时打印表格；否则 stdout 必须且仅输出一个 BatchReport JSON，
// 摘要行走 stderr。
func emitReport(cmd *cobra.Command, rr domain.BatchReport) error {
	out := cmd.OutOrStdout()
	if isTerminal(out) {
		if len(rr.Items) > 0 {
			fmt.Fprintln(out, renderItems(rr.Items))
		}
		fmt.Fprintln(out, summaryLine(rr))
		return nil
	}
	if err := json.NewEncoder(out).Encode(rr); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), summaryLine(rr))
	return nil
}

func summaryLine(rr domain.BatchReport) string {
	s := fmt.Sprintf("完成（%s）：total=%d scraped=%d cached=%d failed=%d",
		rr.Mode, rr.Summary.Total, rr.Summary.Scraped, rr.Summary.Cached, rr.Summary.Failed)
	if rr.Reconcile != nil {
		s += fmt.Sprintf(" reconcile=%d/%d", rr.Reconcile.Updated, rr.Reconcile.Movies)
	}
	if rr.Aborted {
		s += " (已中止)"
	}
	return s
}

func renderItems(items []domain.ItemResult) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		key := it.Key
		if key == "" {
			key = "<unmatched>"
		}
		detail := ""
		if it.ErrorCode != "" {
			detail = it.ErrorCode
			if it.ErrorMsg != "" {
				detail += ": " + truncate(it.ErrorMsg, 80)
			}
		} else if it.Complete {
			detail = "complete"
		}
		rows = append(rows, []string{key, it.Status, strings.Join(it.Sources, ","), detail})
	}
	return renderTable([]string{"Key", "Status", "Sources", "Detail"}, rows, nil)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// reportForConfigError 把配置错误包装成只有一个失败条目的报告，保持 stdout JSON 契约。
func reportForConfigError(mode, path string, err error) domain.BatchReport {
	code := config.Code(err)
	if code == "" {
		code = config.ErrCodeInvalid
	}
	now := time.Now().UTC()
	rr := domain.BatchReport{
		Mode:       mode,
		Path:       path,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
