package dashboard

import "net/http"

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

// dashboardHTML subscribes to /api/events and falls back to polling /api/status.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>agentbar</title>
<style>
  :root {
    --bg: #0d1117;
    --surface: #161b22;
    --border: #30363d;
    --text: #e6edf3;
    --text-dim: #8b949e;
    --accent: #58a6ff;
    --green: #3fb950;
    --yellow: #d29922;
    --red: #f85149;
    --purple: #bc8cff;
  }
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif;
    background: var(--bg);
    color: var(--text);
    font-size: 14px;
    line-height: 1.5;
    padding: 16px;
  }
  header {
    display: flex;
    align-items: center;
    justify-content: space-between;
    margin-bottom: 16px;
    padding-bottom: 12px;
    border-bottom: 1px solid var(--border);
  }
  header h1 { font-size: 20px; font-weight: 600; }
  header h1 span { color: var(--accent); }
  .meta { font-size: 12px; color: var(--text-dim); }
  .meta .live { color: var(--green); }
  table { width: 100%; border-collapse: collapse; background: var(--surface); }
  th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid var(--border); }
  th { color: var(--text-dim); font-weight: 500; font-size: 12px; text-transform: uppercase; }
  tr.focused td:first-child { border-left: 3px solid var(--accent); }
  .status-armed { color: var(--text-dim); }
  .status-running { color: var(--yellow); }
  .status-completed { color: var(--green); }
  .status-error { color: var(--red); }
  .status-cancelled { color: var(--purple); }
  .bar { width: 120px; height: 6px; background: var(--border); border-radius: 3px; overflow: hidden; }
  .bar div { height: 100%; background: var(--accent); }
  .empty { color: var(--text-dim); padding: 24px; text-align: center; }
</style>
</head>
<body>
<header>
  <h1><span>agent</span>bar</h1>
  <div class="meta"><span id="mode">connecting</span> &middot; <span id="count">0</span> task(s)</div>
</header>
<table>
  <thead><tr><th>Task</th><th>IDE</th><th>Status</th><th>Source</th><th>Progress</th><th>Stage</th></tr></thead>
  <tbody id="tasks"></tbody>
</table>
<script>
function esc(s) {
  return String(s == null ? '' : s).replace(/[&<>"']/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c]));
}
function render(snap) {
  const body = document.getElementById('tasks');
  document.getElementById('count').textContent = snap.taskCount;
  if (!snap.tasks || snap.tasks.length === 0) {
    body.innerHTML = '<tr><td class="empty" colspan="6">No tasks reported</td></tr>';
    return;
  }
  body.innerHTML = snap.tasks.map(t =>
    '<tr class="' + (t.is_focused ? 'focused' : '') + '">' +
    '<td>' + esc(t.display_name || t.id) + '</td>' +
    '<td>' + esc(t.ide) + '</td>' +
    '<td class="status-' + esc(t.status) + '">' + esc(t.status) + '</td>' +
    '<td>' + esc(t.source) + '</td>' +
    '<td><div class="bar"><div style="width:' + Number(t.progress) + '%"></div></div></td>' +
    '<td>' + esc(t.current_stage) + '</td></tr>').join('');
}
function poll() {
  fetch('/api/status').then(r => r.json()).then(render).catch(() => {});
}
let timer = null;
function startPolling() {
  document.getElementById('mode').textContent = 'polling';
  if (!timer) { poll(); timer = setInterval(poll, 2000); }
}
function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/events');
  ws.onopen = () => {
    document.getElementById('mode').innerHTML = '<span class="live">live</span>';
    if (timer) { clearInterval(timer); timer = null; }
  };
  ws.onmessage = ev => {
    const msg = JSON.parse(ev.data);
    if (msg.type === 'tasks_updated') render(msg.data);
  };
  ws.onclose = () => { startPolling(); setTimeout(connect, 5000); };
}
poll();
connect();
</script>
</body>
</html>
`
