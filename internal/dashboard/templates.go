package dashboard

import (
	"fmt"
	"html/template"
	"time"
)

var templateFuncs = template.FuncMap{
	"pct":   func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"money": func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"ts":    func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
}

const pageTemplates = `
{{define "index"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ZeroTheta runs</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { padding: 4px 10px; border-bottom: 1px solid #ddd; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.profit { color: #1a7f37; }
.loss { color: #cf222e; }
</style>
</head>
<body>
<h1>ZeroTheta runs</h1>
<form method="get" action="/">
<select name="experiment" onchange="this.form.submit()">
{{range .Experiments}}<option value="{{.}}"{{if eq . $.Selected}} selected{{end}}>{{.}}</option>
{{end}}</select>
</form>
<p>Updated {{ts .LastUpdate}}</p>
{{template "runs" .}}
</body>
</html>{{end}}

{{define "runs"}}<table id="runs">
<tr><th>Run</th><th>Status</th><th>Started</th><th>Duration</th><th>Trades</th><th>Win rate</th><th>Profit</th><th>Sharpe</th></tr>
{{range .Runs}}<tr>
<td>{{.Name}}</td><td>{{.Status}}</td><td>{{ts .StartedAt}}</td><td>{{.Duration}}</td><td>{{.Trades}}</td>
<td>{{pct .WinRate}}</td><td class="{{if .IsProfit}}profit{{else}}loss{{end}}">{{money .TotalProfit}}</td><td>{{money .Sharpe}}</td>
</tr>
{{else}}<tr><td colspan="8">No runs recorded</td></tr>
{{end}}</table>{{end}}
`
