package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/castsync/castsync/pkg/catalog"
	"github.com/castsync/castsync/pkg/model"
	"github.com/castsync/castsync/services/update"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxCellRunes = 60

func renderTable(title string, headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle(title)
	}

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
			WidthMax:    maxCellRunes,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderSummary(summary *update.Summary) string {
	rows := make([][]string, 0, len(summary.Items))
	for _, item := range summary.Items {
		detail := item.Path
		if item.Outcome == update.Failed {
			detail = item.Kind
			if item.Err != nil {
				detail = fmt.Sprintf("%s: %v", item.Kind, item.Err)
			}
		}

		rows = append(rows, []string{
			item.Episode.ID,
			item.Episode.PublishedAt.Format("2006-01-02"),
			item.Episode.Title,
			string(item.Outcome),
			detail,
		})
	}

	title := "castsync"
	if summary.Program != nil {
		title = summary.Program.Title
	}

	var b strings.Builder
	b.WriteString(renderTable(title, []string{"ID", "Date", "Title", "Outcome", "Detail"}, rows, nil))
	b.WriteString("\n")
	b.WriteString(summary.String())

	if summary.Err != nil {
		fmt.Fprintf(&b, "\nlisting incomplete: %v", summary.Err)
	}

	return b.String()
}

func renderFeeds(results []*update.FeedResult) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		rows = append(rows, []string{result.Title, strconv.Itoa(result.Items), result.URL})
	}

	return renderTable("", []string{"Feed", "Items", "URL"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft})
}

func renderPrograms(programs []*model.Program) string {
	rows := make([][]string, 0, len(programs))
	for _, program := range programs {
		rows = append(rows, []string{program.ID, program.Title, program.AuthorName})
	}

	return renderTable(fmt.Sprintf("%d programs", len(programs)), []string{"ID", "Title", "Author"}, rows, []columnAlignment{alignRight})
}

func renderAuthors(authors []*catalog.Author) string {
	rows := make([][]string, 0, len(authors))
	for _, author := range authors {
		rows = append(rows, []string{
			author.Name,
			author.Email,
			strconv.Itoa(author.Episodes),
			strings.Join(author.Programs, ", "),
		})
	}

	return renderTable("", []string{"Name", "Email", "Episodes", "Programs"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
}
