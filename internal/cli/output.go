package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/legisync/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutputTo создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutputTo(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}

// JSONMode сообщает, включён ли JSON.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Line выводит одну строку данных (для потокового вывода watch).
func (o *Output) Line(format string, args ...any) {
	fmt.Fprintf(o.w, format+"\n", args...)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Warn выводит предупреждение в stderr.
func (o *Output) Warn(msg string) {
	fmt.Fprintln(o.errW, "Warning: "+msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Reports выводит отчёты о запусках.
func (o *Output) Reports(reports []domain.RunReport) {
	headers := []string{"ENTITY", "STATUS", "EXTRACTED", "TRANSFORMED", "WRITTEN", "FAILED", "WARNINGS", "DURATION", "RUN_ID", "ERROR"}
	rows := make([][]string, len(reports))
	for i := range reports {
		r := &reports[i]
		written, failed := 0, 0
		if r.Result != nil {
			written, failed = r.Result.Succeeded, r.Result.Failed
		}
		rows[i] = []string{
			r.Entity,
			string(r.Status),
			counter(r.Stats.Extraction),
			counter(r.Stats.Transformation),
			strconv.Itoa(written),
			strconv.Itoa(failed),
			strconv.Itoa(r.Stats.Warnings),
			r.Duration().Round(time.Millisecond).String(),
			r.ID.String(),
			r.Error,
		}
	}
	o.Print(headers, rows, reports)
}

// counter — «успешно/всего» или «успешно/всего (-упало)».
func counter(c domain.StageCounter) string {
	s := fmt.Sprintf("%d/%d", c.Succeeded, c.Total)
	if c.Failed > 0 {
		s += fmt.Sprintf(" (-%d)", c.Failed)
	}
	return s
}
