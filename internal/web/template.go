package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/sweeney/oven-monitor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"temp": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 2, 64)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Oven Monitor</title>
<style>
body { font-family: monospace; max-width: 980px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
img { max-width: 100%; }
.on { color: #c00; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
#error { color: red; }
</style>
</head>
<body>
<h1>Oven Monitor <small>({{.View.Profile}}, {{.View.Driver}})</small></h1>

<img id="chart" src="/chart.png" alt="temperature history" width="960" height="360">

<h2>State</h2>
<table>
<tr><th>Relay</th><td class="{{if eq (stateOrUnknown (printf "%s" .View.Control.Relay)) "ON"}}on{{else if eq (stateOrUnknown (printf "%s" .View.Control.Relay)) "OFF"}}off{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .View.Control.Relay)}}</td></tr>
<tr><th>Temperature</th><td>{{if .View.HasTemp}}{{temp .View.Temperature}} °C{{else}}no reading yet{{end}}</td></tr>
<tr><th>Target</th><td>{{temp .View.Target.Target}} °C</td></tr>
<tr><th>Switch off above</th><td>{{temp .View.Thresholds.Upper}} °C</td></tr>
<tr><th>Switch on below</th><td>{{temp .View.Thresholds.Lower}} °C{{if .View.DeviceBounds}} (reported by controller){{end}}</td></tr>
{{if .View.Mode}}<tr><th>Mode</th><td>{{.View.Mode}}</td></tr>{{end}}
<tr><th>Last switch</th><td>{{if .View.Control.LastSwitch.IsZero}}never{{else}}{{.View.Control.LastSwitch.UTC.Format "2006-01-02T15:04:05Z"}} (previous state lasted {{.View.Control.LastSwitchDuration}}){{end}}</td></tr>
{{range $k, $v := .View.Extras}}<tr><th>{{$k}}</th><td>{{$v}}</td></tr>
{{end}}</table>

<h2>Control</h2>
<p>
<button id="toggle">Toggle relay</button>
<input id="target" type="number" min="0" max="999" step="1" value="{{printf "%.0f" .View.Target.Target}}">
<button id="set-target">Set target</button>
{{if .View.Switchable}}<select id="mode"><option value="off">off</option><option value="auto_switch">auto_switch</option></select>
<button id="set-mode">Set mode</button>{{end}}
</p>
<p id="error"></p>

<h2>Connectivity</h2>
<table>
<tr><th>Controller</th><td class="{{if .DeviceConnected}}connected{{else}}disconnected{{end}}">{{if .DeviceConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Config.DeviceURL}}<tr><th>URL</th><td>{{.Config.DeviceURL}}</td></tr>{{end}}
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Relay Counts</h2>
<table>
<tr><th>ON</th><td>{{.View.Counts.On}}</td></tr>
<tr><th>OFF</th><td>{{.View.Counts.Off}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Session</th><td>{{.View.SessionID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Samples</th><td>{{len .View.Temperatures}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Retention</th><td>{{.Config.RetentionMin}}min</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/data.csv">CSV</a> · <a href="/index.json">JSON</a> · <a href="/bands.json">Bands</a> · <a href="/metrics">Metrics</a></p>

<script>
(function() {
  var err = document.getElementById("error");
  function post(url, body) {
    fetch(url, {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify(body || {})})
      .then(function(r) {
        if (r.ok) { err.textContent = ""; return; }
        return r.json().then(function(j) { err.textContent = j.error; });
      })
      .catch(function(e) { err.textContent = e; });
  }
  document.getElementById("toggle").onclick = function() { post("/api/relay/toggle"); };
  document.getElementById("set-target").onclick = function() {
    post("/api/target", {target: Number(document.getElementById("target").value)});
  };
  var mode = document.getElementById("set-mode");
  if (mode) {
    mode.onclick = function() { post("/api/mode", {mode: document.getElementById("mode").value}); };
  }
  var chart = document.getElementById("chart");
  setInterval(function() { chart.src = "/chart.png?t=" + Date.now(); }, 2000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
