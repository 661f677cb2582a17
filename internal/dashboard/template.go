package dashboard

const pageTemplate = `
<!DOCTYPE html>
<html>
<head>
    <title>Flight Delay Prediction</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; background-color: #f5f5f5; }
        .layout { display: flex; min-height: 100vh; }
        .sidebar { width: 300px; background: white; padding: 20px; box-shadow: 2px 0 4px rgba(0,0,0,0.1); }
        .sidebar label { display: block; margin-top: 10px; font-weight: 500; color: #666; }
        .sidebar input, .sidebar select { width: 100%; padding: 6px; margin-top: 4px; box-sizing: border-box; }
        .sidebar button { width: 100%; margin-top: 20px; padding: 10px; background: #1f77b4; color: white; border: none; border-radius: 5px; font-weight: bold; cursor: pointer; }
        .main { flex: 1; padding: 20px; }
        .header { background: linear-gradient(135deg, #1f77b4 0%, #2c3e50 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; text-align: center; }
        .card { background: white; border-radius: 10px; padding: 20px; margin-bottom: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .delayed { color: #dc3545; }
        .ontime { color: #28a745; }
        .error { background: #f8d7da; color: #721c24; padding: 12px; border-radius: 5px; }
        .status-dot { display: inline-block; width: 12px; height: 12px; border-radius: 50%; margin-right: 8px; }
        .status-active { background-color: #28a745; }
        .status-danger { background-color: #dc3545; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; }
        th { background-color: #f8f9fa; font-weight: 600; }
    </style>
</head>
<body>
<div class="layout">
    <form class="sidebar" method="POST" action="/">
        <h2>Flight Details</h2>
        <label for="month">Month</label>
        <select id="month" name="month">
            {{range .Months}}<option value="{{.}}"{{if selected (index $.Values "month") .}} selected{{end}}>{{.}}</option>{{end}}
        </select>
        <label for="carrier">Carrier</label>
        <input id="carrier" name="carrier" value="{{index .Values "carrier"}}">
        <label for="airport">Airport</label>
        <input id="airport" name="airport" value="{{index .Values "airport"}}">
        <label for="arr_flights">Arriving flights</label>
        <input id="arr_flights" name="arr_flights" type="number" min="0" step="any" value="{{index .Values "arr_flights"}}">
        <label for="carrier_delay">Carrier delay (min)</label>
        <input id="carrier_delay" name="carrier_delay" type="number" min="0" step="any" value="{{index .Values "carrier_delay"}}">
        <label for="weather_delay">Weather delay (min)</label>
        <input id="weather_delay" name="weather_delay" type="number" min="0" step="any" value="{{index .Values "weather_delay"}}">
        <label for="nas_delay">NAS delay (min)</label>
        <input id="nas_delay" name="nas_delay" type="number" min="0" step="any" value="{{index .Values "nas_delay"}}">
        <label for="security_delay">Security delay (min)</label>
        <input id="security_delay" name="security_delay" type="number" min="0" step="any" value="{{index .Values "security_delay"}}">
        <label for="late_aircraft_delay">Late aircraft delay (min)</label>
        <input id="late_aircraft_delay" name="late_aircraft_delay" type="number" min="0" step="any" value="{{index .Values "late_aircraft_delay"}}">
        <button type="submit">Predict Delay</button>
    </form>

    <div class="main">
        <div class="header"><h1>Flight Delay Prediction</h1></div>

        <div class="card">
            <h3>Model</h3>
            {{if .ModelLoaded}}
            <p><span class="status-dot status-active"></span>Model loaded{{with .ModelInfo}}: {{.ModelType}}{{if .FeatureCount}} ({{.FeatureCount}} features){{end}}{{end}}</p>
            {{else}}
            <p><span class="status-dot status-danger"></span>Model not available. Please train the model first.</p>
            {{end}}
            {{with .ErrorRate}}<p id="error-rate">Prediction error rate: {{pct .}}</p>{{end}}
        </div>

        {{if .Error}}<div class="card"><div class="error" id="error">{{.Error}}</div></div>{{end}}

        {{with .Result}}
        <div class="card" id="result">
            <h3>Prediction</h3>
            <h2 class="{{if .Delayed}}delayed{{else}}ontime{{end}}">{{.Headline}}</h2>
            <p>{{.Label}}: <strong>{{.Probability}}</strong></p>
        </div>
        {{end}}

        {{with .ModelInfo}}{{if .TopFeatures}}
        <div class="card">
            <h3>Top Features</h3>
            <table>
                <tr><th>Feature</th><th>Importance</th></tr>
                {{range .TopFeatures}}<tr><td>{{.Feature}}</td><td>{{printf "%.4f" .Importance}}</td></tr>{{end}}
            </table>
        </div>
        {{end}}{{end}}

        <div class="card">
            <h3>Recent Predictions</h3>
            <table>
                <thead><tr><th>Time</th><th>Carrier</th><th>Airport</th><th>Month</th><th>Status</th><th>Delay probability</th></tr></thead>
                <tbody id="recent-body">
                {{range .Recent}}<tr><td>{{.Timestamp.Format "15:04:05"}}</td><td>{{.Input.Carrier}}</td><td>{{.Input.Airport}}</td><td>{{.Input.Month}}</td><td>{{.Result.DelayStatus}}</td><td>{{pct .Result.Probability}}</td></tr>{{end}}
                </tbody>
            </table>
        </div>
    </div>
</div>

<script>
    (function() {
        const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(proto + location.host + '/ws');
        const body = document.getElementById('recent-body');

        function row(p) {
            const tr = document.createElement('tr');
            const cells = [
                new Date(p.timestamp).toLocaleTimeString(),
                p.input.carrier, p.input.airport, p.input.month,
                p.result.delay_status, (p.result.probability * 100).toFixed(1) + '%'
            ];
            for (const c of cells) {
                const td = document.createElement('td');
                td.textContent = c;
                tr.appendChild(td);
            }
            return tr;
        }

        ws.onmessage = function(event) {
            const msg = JSON.parse(event.data);
            if (msg.type === 'prediction') {
                body.insertBefore(row(msg.prediction), body.firstChild);
                while (body.children.length > 50) {
                    body.removeChild(body.lastChild);
                }
            }
        };
    })();
</script>
</body>
</html>
`
