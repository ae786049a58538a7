package webui

import (
	"html/template"
)

// Templates contains the console page and its region fragments
var Templates = template.Must(template.New("").Funcs(template.FuncMap{
	"levelClass": func(level string) string {
		switch level {
		case "error", "fatal":
			return "log-error"
		case "warn":
			return "log-warn"
		case "debug":
			return "log-debug"
		default:
			return "log-info"
		}
	},
}).Parse(`
{{define "page"}}
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Attendance Console</title>
    <link rel="preconnect" href="https://fonts.googleapis.com">
    <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
    <link href="https://fonts.googleapis.com/css2?family=JetBrains+Mono:wght@400;500;600&family=Outfit:wght@400;500;600;700&display=swap" rel="stylesheet">
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --bg-tertiary: #21262d;
            --border-color: #30363d;
            --text-primary: #e6edf3;
            --text-secondary: #8b949e;
            --text-muted: #6e7681;
            --accent-green: #3fb950;
            --accent-green-dim: #238636;
            --accent-red: #f85149;
            --accent-yellow: #d29922;
            --accent-blue: #58a6ff;
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: 'Outfit', -apple-system, BlinkMacSystemFont, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
            min-height: 100vh;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }

        header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 2rem;
            padding-bottom: 1.5rem;
            border-bottom: 1px solid var(--border-color);
        }

        h1 { font-size: 1.75rem; font-weight: 600; }

        .header-actions { display: flex; gap: 1rem; align-items: center; }

        .status-badge {
            display: flex;
            align-items: center;
            gap: 0.5rem;
            padding: 0.5rem 1rem;
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 20px;
            font-size: 0.875rem;
        }

        .btn {
            display: inline-flex;
            align-items: center;
            gap: 0.5rem;
            padding: 0.5rem 1rem;
            border-radius: 8px;
            font-family: inherit;
            font-size: 0.8125rem;
            font-weight: 500;
            cursor: pointer;
            background: var(--bg-tertiary);
            color: var(--text-primary);
            border: 1px solid var(--border-color);
        }

        .btn-primary { background: var(--accent-green-dim); border-color: var(--accent-green); }
        .btn-danger { border-color: var(--accent-red); color: var(--accent-red); }

        .card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 12px;
            overflow: hidden;
            margin-bottom: 1.5rem;
        }

        .card-header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            padding: 1rem 1.25rem;
            background: var(--bg-tertiary);
            border-bottom: 1px solid var(--border-color);
        }

        .card-title { font-size: 1rem; font-weight: 600; }
        .card-body { padding: 1rem 1.25rem; }

        .stats-grid {
            display: grid;
            grid-template-columns: repeat(3, 1fr);
            gap: 1rem;
            margin-bottom: 1.5rem;
        }

        .stat-card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 10px;
            padding: 1.25rem;
        }

        .stat-label { font-size: 0.8125rem; color: var(--text-secondary); }
        .stat-value { font-size: 1.75rem; font-weight: 600; font-family: 'JetBrains Mono', monospace; }
        .stat-value.green { color: var(--accent-green); }
        .stat-value.red { color: var(--accent-red); }
        .stat-value.blue { color: var(--accent-blue); }

        .device-grid {
            display: grid;
            grid-template-columns: repeat(auto-fill, minmax(260px, 1fr));
            gap: 1rem;
        }

        .device-card {
            background: var(--bg-primary);
            border: 1px solid var(--border-color);
            border-radius: 10px;
            padding: 1rem;
        }

        .device-card h3 { font-size: 0.9375rem; font-weight: 500; }
        .device-meta { font-size: 0.8125rem; color: var(--text-secondary); margin: 0.5rem 0; }

        .badge {
            padding: 0.125rem 0.5rem;
            border-radius: 4px;
            font-size: 0.75rem;
            font-weight: 600;
            text-transform: uppercase;
        }

        .badge.online, .badge.active { background: rgba(63, 185, 80, 0.15); color: var(--accent-green); }
        .badge.offline, .badge.inactive { background: rgba(248, 81, 73, 0.15); color: var(--accent-red); }
        .badge.unknown { background: var(--bg-tertiary); color: var(--text-secondary); }

        .alert-banner {
            padding: 0.75rem 1.25rem;
            border-radius: 10px;
            margin-bottom: 1rem;
            background: rgba(248, 81, 73, 0.1);
            border: 1px solid var(--accent-red);
        }

        .alert-list { list-style: none; }

        .alert-item {
            display: flex;
            gap: 1rem;
            padding: 0.75rem 0;
            border-bottom: 1px solid var(--border-color);
        }

        .alert-item:last-child { border-bottom: none; }

        .alert-severity {
            padding: 0.25rem 0.625rem;
            border-radius: 4px;
            font-size: 0.75rem;
            font-weight: 600;
            text-transform: uppercase;
            height: fit-content;
        }

        .alert-severity.critical { background: rgba(248, 81, 73, 0.25); color: var(--accent-red); }
        .alert-severity.high { background: rgba(248, 81, 73, 0.12); color: var(--accent-red); }
        .alert-severity.medium { background: rgba(210, 153, 34, 0.15); color: var(--accent-yellow); }
        .alert-severity.low { background: rgba(88, 166, 255, 0.15); color: var(--accent-blue); }

        .alert-content h4 { font-size: 0.875rem; font-weight: 500; }
        .alert-content p { font-size: 0.8125rem; color: var(--text-secondary); }

        table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
        th, td { text-align: left; padding: 0.625rem 0.75rem; border-bottom: 1px solid var(--border-color); }
        th { color: var(--text-secondary); font-weight: 500; }

        input, select {
            background: var(--bg-primary);
            color: var(--text-primary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 0.375rem 0.625rem;
            font-family: inherit;
        }

        .toolbar, .form-row { display: flex; gap: 0.75rem; flex-wrap: wrap; margin-bottom: 1rem; }

        .empty-state { padding: 2rem; text-align: center; color: var(--text-muted); }

        .log-container {
            height: 300px;
            overflow-y: auto;
            font-family: 'JetBrains Mono', monospace;
            font-size: 0.8125rem;
            background: var(--bg-primary);
        }

        .log-entry { padding: 0.375rem 1rem; border-bottom: 1px solid var(--bg-tertiary); display: flex; gap: 1rem; }
        .log-time { color: var(--text-muted); white-space: nowrap; }
        .log-level { text-transform: uppercase; font-weight: 600; min-width: 50px; }
        .log-info .log-level { color: var(--accent-blue); }
        .log-warn .log-level { color: var(--accent-yellow); }
        .log-error .log-level { color: var(--accent-red); }
        .log-debug .log-level { color: var(--text-muted); }
        .log-message { color: var(--text-secondary); word-break: break-word; }

        .toasts { position: fixed; bottom: 2rem; right: 2rem; display: flex; flex-direction: column; gap: 0.5rem; }

        .toast {
            padding: 0.875rem 1.25rem;
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 10px;
            font-size: 0.875rem;
        }

        .toast.success { border-color: var(--accent-green); }
        .toast.error { border-color: var(--accent-red); }
        .toast.warning { border-color: var(--accent-yellow); }

        footer { margin-top: 2rem; color: var(--text-muted); font-size: 0.8125rem; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Attendance Console</h1>
            <div class="header-actions">
                <div class="status-badge">{{.Operator}} &middot; {{.OperatorRole}}</div>
                <form method="post" action="/logout"><button class="btn" type="submit">Logout</button></form>
            </div>
        </header>

        <section class="card">
            <div class="card-header">
                <span class="card-title">Hardware Monitor</span>
                <button class="btn btn-primary" data-action="refresh-devices">Fetch</button>
            </div>
            <div class="card-body" id="region-devices">{{.Devices}}</div>
        </section>

        <section class="card">
            <div class="card-header"><span class="card-title">Permissions</span></div>
            <div class="card-body">
                <div class="toolbar">
                    <input type="search" placeholder="Search name or email" value="{{.Query}}" data-filter="q">
                    <select data-filter="role">
                        <option value="">All roles</option>
                        {{range .Roles}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}
                    </select>
                </div>
                <form class="form-row" data-form="users">
                    <input name="firstName" placeholder="First name">
                    <input name="lastName" placeholder="Last name">
                    <input name="email" placeholder="Email">
                    <select name="role">
                        <option value="">Select role</option>
                        {{range .Roles}}<option value="{{.Value}}">{{.Label}}</option>{{end}}
                    </select>
                    <button class="btn btn-primary" type="submit" data-label="Add User">Add User</button>
                    <button class="btn" type="reset" hidden>Cancel</button>
                </form>
                <div id="region-users">{{.Users}}</div>
            </div>
        </section>

        <section class="card">
            <div class="card-header"><span class="card-title">Attendance Policies</span></div>
            <div class="card-body">
                <form class="form-row" data-form="policies">
                    <select name="moduleId" data-number>
                        <option value="0">Select module</option>
                        {{range .Modules}}<option value="{{.ID}}">{{.Label}}</option>{{end}}
                    </select>
                    <input type="number" name="gracePeriod" min="0" value="{{.GracePeriod}}">
                    <input type="number" name="lateThreshold" min="0" value="{{.LateThreshold}}">
                    <label><input type="checkbox" name="isActive" checked> Active</label>
                    <button class="btn btn-primary" type="submit" data-label="Add Policy">Add Policy</button>
                    <button class="btn" type="reset" hidden>Cancel</button>
                </form>
                <div id="region-policies">{{.Policies}}</div>
            </div>
        </section>

        <section class="card">
            <div class="card-header"><span class="card-title">Recent Logs</span></div>
            <div class="log-container">
                {{range .Logs}}
                <div class="log-entry {{levelClass .Level}}">
                    <span class="log-time">{{.Timestamp.Format "15:04:05"}}</span>
                    <span class="log-level">{{.Level}}</span>
                    <span class="log-message">{{.Message}}</span>
                </div>
                {{end}}
            </div>
        </section>

        <footer>Version {{if .Version}}{{.Version}}{{else}}dev{{end}}{{if ne .Commit "unknown"}} ({{.Commit | printf "%.7s"}}){{end}}</footer>
    </div>

    <div class="toasts" id="toasts">{{template "toasts" .Toasts}}</div>

    <script>
        const displayMs = {{.DisplayMs}};

        function escapeHtml(text) {
            const div = document.createElement('div');
            div.textContent = text;
            return div.innerHTML;
        }

        function showToast(n) {
            const el = document.createElement('div');
            el.className = 'toast ' + n.level;
            el.id = 'toast-' + n.id;
            el.innerHTML = escapeHtml(n.message);
            document.getElementById('toasts').appendChild(el);
            setTimeout(function() { el.remove(); }, displayMs);
        }

        function dismissToast(n) {
            const el = document.getElementById('toast-' + n.id);
            if (el) el.remove();
        }

        async function post(url, body) {
            try {
                const res = await fetch(url, {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: body ? JSON.stringify(body) : null
                });
                return await res.json();
            } catch (e) {
                showToast({ id: String(Date.now()), level: 'error', message: 'Error connecting to server' });
            }
        }

        function formValues(form) {
            const values = {};
            new FormData(form).forEach(function(v, k) { values[k] = v; });
            form.querySelectorAll('input[type=checkbox]').forEach(function(cb) { values[cb.name] = cb.checked; });
            form.querySelectorAll('input[type=number], select[data-number]').forEach(function(el) { values[el.name] = Number(el.value); });
            return values;
        }

        function editForm(name, fields) {
            const form = document.querySelector('form[data-form=' + name + ']');
            Object.keys(fields).forEach(function(k) {
                const el = form.elements[k];
                if (!el) return;
                if (el.type === 'checkbox') el.checked = fields[k] === 'true';
                else el.value = fields[k];
            });
            return form;
        }

        function beginEdit(form, id, label) {
            form.dataset.id = id;
            form.querySelector('[type=submit]').textContent = label;
            form.querySelector('[type=reset]').hidden = false;
        }

        document.addEventListener('reset', function(e) {
            const form = e.target.closest('form[data-form]');
            if (!form) return;
            delete form.dataset.id;
            const submit = form.querySelector('[type=submit]');
            submit.textContent = submit.dataset.label;
            form.querySelector('[type=reset]').hidden = true;
        });

        document.addEventListener('click', function(e) {
            const btn = e.target.closest('[data-action]');
            if (!btn) return;
            const id = encodeURIComponent(btn.dataset.id || '');
            switch (btn.dataset.action) {
            case 'refresh-devices': post('/actions/devices/refresh'); break;
            case 'ping-device': post('/actions/devices/' + id + '/ping'); break;
            case 'edit-user': {
                const d = btn.dataset;
                const form = editForm('users', { firstName: d.firstName, lastName: d.lastName, email: d.email, role: d.role });
                beginEdit(form, d.id, 'Save User');
                break;
            }
            case 'edit-policy': {
                const d = btn.dataset;
                const form = editForm('policies', { moduleId: d.moduleId, gracePeriod: d.gracePeriod, lateThreshold: d.lateThreshold, isActive: d.active });
                beginEdit(form, d.id, 'Save Policy');
                break;
            }
            case 'delete-user':
                if (confirm('Delete this user?')) post('/actions/users/' + id + '/delete');
                break;
            case 'delete-policy':
                if (confirm('Delete this policy?')) post('/actions/policies/' + id + '/delete');
                break;
            }
        });

        document.addEventListener('submit', function(e) {
            const form = e.target.closest('form[data-form]');
            if (!form) return;
            e.preventDefault();
            const id = form.dataset.id ? '/' + encodeURIComponent(form.dataset.id) : '';
            post('/actions/' + form.dataset.form + id, formValues(form)).then(function(res) {
                if (res && res.ok) form.reset();
            });
        });

        function currentFilter() {
            const q = document.querySelector('[data-filter=q]');
            const role = document.querySelector('[data-filter=role]');
            const qv = q ? q.value : '';
            const rv = role ? role.value : '';
            if (!qv && !rv) return '';
            return 'q=' + encodeURIComponent(qv) + '&role=' + encodeURIComponent(rv);
        }

        let userFilter = currentFilter();

        async function loadUsers() {
            const res = await fetch('/actions/users/filter?' + userFilter);
            if (res.ok) document.getElementById('region-users').innerHTML = await res.text();
        }

        document.addEventListener('input', function(e) {
            if (!e.target.closest('[data-filter]')) return;
            userFilter = currentFilter();
            loadUsers();
        });

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const ws = new WebSocket(proto + location.host + '/ws');
            ws.onmessage = function(ev) {
                const msg = JSON.parse(ev.data);
                switch (msg.type) {
                case 'render': {
                    if (msg.region === 'users' && userFilter) {
                        loadUsers();
                        break;
                    }
                    const region = document.getElementById('region-' + msg.region);
                    if (region) region.innerHTML = msg.html;
                    break;
                }
                case 'notify': showToast(msg.notification); break;
                case 'dismiss': dismissToast(msg.notification); break;
                }
            };
            ws.onclose = function() { setTimeout(connect, 2000); };
        }
        connect();
    </script>
</body>
</html>
{{end}}

{{define "toasts"}}{{range .}}<div class="toast {{.Level}}" id="toast-{{.ID}}">{{.Message}}</div>{{end}}{{end}}

{{define "devices"}}
<div class="stats-grid">
    <div class="stat-card"><div class="stat-label">Total Devices</div><div class="stat-value blue" data-stat="total">{{.Stats.Total}}</div></div>
    <div class="stat-card"><div class="stat-label">Online</div><div class="stat-value green" data-stat="online">{{.Stats.Online}}</div></div>
    <div class="stat-card"><div class="stat-label">Offline</div><div class="stat-value red" data-stat="offline">{{.Stats.Offline}}</div></div>
</div>
{{if .Alerts}}
<div class="alert-banner"><strong>{{len .Alerts}}</strong> active alert(s)</div>
<ul class="alert-list">
    {{range .Alerts}}
    <li class="alert-item" data-alert="{{.ID}}">
        <span class="alert-severity {{.Severity}}">{{.Severity}}</span>
        <div class="alert-content">
            <h4>{{.Title}}</h4>
            <p>{{.Description}}</p>
            <p>{{.CreatedAt}}{{if .Derived}} &middot; derived{{end}}</p>
        </div>
    </li>
    {{end}}
</ul>
{{else}}
<div class="empty-state">No active alerts</div>
{{end}}
{{if .Devices}}
<div class="device-grid">
    {{range .Devices}}
    <div class="device-card" data-device="{{.ID}}">
        <h3>{{.Name}}</h3>
        <div class="device-meta">{{if .Type}}{{.Type}} &middot; {{end}}<span class="badge {{.StatusClass}}">{{.StatusLabel}}</span></div>
        <div class="device-meta">Last seen: {{.LastSeen}}</div>
        {{if .LastPing}}<div class="device-meta">Last ping: {{.LastPing}}{{if .Latency}} ({{.Latency}}){{end}}</div>{{end}}
        <button class="btn" data-action="ping-device" data-id="{{.ID}}">Ping</button>
    </div>
    {{end}}
</div>
{{else}}
<div class="empty-state">No devices found.</div>
{{end}}
{{end}}

{{define "users"}}
{{if .Users}}
<table>
    <thead><tr><th>Name</th><th>Email</th><th>Role</th><th>Status</th><th></th></tr></thead>
    <tbody>
        {{range .Users}}
        <tr data-user="{{.ID}}">
            <td>{{.Name}}</td>
            <td>{{.Email}}</td>
            <td data-role="{{.Role}}">{{.RoleLabel}}</td>
            <td>{{if .Active}}<span class="badge active">Active</span>{{else}}<span class="badge inactive">Inactive</span>{{end}}</td>
            <td>
                <button class="btn" data-action="edit-user" data-id="{{.ID}}" data-first-name="{{.FirstName}}" data-last-name="{{.LastName}}" data-email="{{.Email}}" data-role="{{.Role}}">Edit</button>
                <button class="btn btn-danger" data-action="delete-user" data-id="{{.ID}}">Delete</button>
            </td>
        </tr>
        {{end}}
    </tbody>
</table>
{{else}}
<div class="empty-state">No users found.</div>
{{end}}
{{end}}

{{define "policies"}}
{{if .Policies}}
<table>
    <thead><tr><th>Module</th><th>Grace Period</th><th>Late Threshold</th><th>Status</th><th></th></tr></thead>
    <tbody>
        {{range .Policies}}
        <tr data-policy="{{.ID}}">
            <td>{{.Module}}</td>
            <td>{{.GracePeriod}} min</td>
            <td>{{.LateThreshold}} min</td>
            <td>{{if .Active}}<span class="badge active">Active</span>{{else}}<span class="badge inactive">Inactive</span>{{end}}</td>
            <td>
                <button class="btn" data-action="edit-policy" data-id="{{.ID}}" data-module-id="{{.ModuleID}}" data-grace-period="{{.GracePeriod}}" data-late-threshold="{{.LateThreshold}}" data-active="{{.Active}}">Edit</button>
                <button class="btn btn-danger" data-action="delete-policy" data-id="{{.ID}}">Delete</button>
            </td>
        </tr>
        {{end}}
    </tbody>
</table>
{{else}}
<div class="empty-state">No policies found.</div>
{{end}}
{{end}}

{{define "denied"}}
<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Access denied</title></head>
<body style="font-family: sans-serif; background: #0d1117; color: #e6edf3; padding: 3rem;">
    <h1>{{.Message}}</h1>
    <p><a href="{{.LoginURL}}" style="color: #58a6ff;">Return to login</a></p>
</body>
</html>
{{end}}
`))
