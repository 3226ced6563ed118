package gateway

// dashboardHTML is the single-page operator dashboard. Live updates arrive
// over the /ws push channel when available, with a 2s /api/stats poll as the
// fallback.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Scalper Bot</title>
    <style>
        body { font-family: 'Segoe UI', sans-serif; background: #121212; color: #e0e0e0; padding: 20px; text-align: center; }
        .container { max-width: 600px; margin: 0 auto; }
        .card { background: #1e1e1e; padding: 20px; border-radius: 12px; margin-bottom: 15px; box-shadow: 0 4px 10px rgba(0,0,0,0.5); text-align: left; }
        .big-price { font-size: 2.5em; font-weight: bold; color: #fff; text-align: center; }
        .status-badge { display: inline-block; padding: 5px 12px; border-radius: 20px; font-weight: bold; font-size: 0.8em; }
        .idle { background: #333; color: #aaa; }
        .active { background: #2196F3; color: white; animation: pulse 2s infinite; }
        .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 15px; }
        .val-box { background: #252525; padding: 10px; border-radius: 8px; }
        .label { font-size: 0.8em; color: #777; }
        .value { font-size: 1.1em; font-weight: bold; margin-top: 2px; }
        .pos { color: #4CAF50; } .neg { color: #F44336; }
        .log-box { background: #000; color: #00ff00; font-family: 'Courier New', monospace; font-size: 0.8em; height: 150px; overflow-y: auto; padding: 10px; border-radius: 8px; border: 1px solid #333; }
        @keyframes pulse { 0% { opacity: 1; } 50% { opacity: 0.7; } 100% { opacity: 1; } }
    </style>
    <script>
        function setText(id, val) {
            const el = document.getElementById(id);
            if (el) el.innerText = val;
        }
        function setClass(id, val) {
            const el = document.getElementById(id);
            if (el) el.className = val;
        }

        function render(data) {
            setText('price', '$' + data.price.toFixed(2));
            setText('status', data.status);
            setClass('status', 'status-badge ' + (data.status.includes('IDLE') || data.status === 'STARTING' ? 'idle' : 'active'));

            setText('entry', data.entry_price > 0 ? '$' + data.entry_price.toFixed(2) : '--');

            const pl = data.unrealized_pl;
            setText('unrealized', pl.toFixed(2) + '%');
            setClass('unrealized', 'value ' + (pl >= 0 ? 'pos' : 'neg'));

            setText('realized', '$' + data.realized_pl.toFixed(2));
            setText('rsi', data.rsi.toFixed(2));
            setText('bb_low', '$' + data.bb_lower.toFixed(2));
            setText('bb_high', '$' + data.bb_upper.toFixed(2));
            setText('usdt', '$' + data.wallet_usdt.toFixed(2));
            setText('btc', data.wallet_btc.toFixed(5) + ' BTC');

            let logHtml = '';
            (data.logs || []).forEach(function(line) { logHtml += '<div>&gt; ' + line + '</div>'; });
            const logsEl = document.getElementById('logs');
            if (logsEl) logsEl.innerHTML = logHtml;
        }

        async function poll() {
            try {
                const res = await fetch(window.location.origin + '/api/stats?t=' + Date.now());
                render(await res.json());
            } catch (e) { console.error('poll error:', e); }
        }

        let pollTimer = setInterval(poll, 2000);

        function connectWS() {
            const proto = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
            const ws = new WebSocket(proto + window.location.host + '/ws');
            ws.onmessage = function(ev) {
                clearInterval(pollTimer);
                pollTimer = null;
                render(JSON.parse(ev.data));
            };
            ws.onclose = function() {
                if (!pollTimer) pollTimer = setInterval(poll, 2000);
                setTimeout(connectWS, 5000);
            };
        }

        window.addEventListener('load', function() { poll(); connectWS(); });
    </script>
</head>
<body>
    <div class="container">
        <h1>Scalper Bot</h1>
        <div class="card" style="text-align: center;">
            <div id="status" class="status-badge idle">Connecting...</div>
            <div class="big-price" id="price">Loading...</div>
        </div>

        <div class="card">
            <div class="grid">
                <div class="val-box"><div class="label">Entry</div><div class="value" id="entry">--</div></div>
                <div class="val-box"><div class="label">P&amp;L</div><div class="value" id="unrealized">0.00%</div></div>
                <div class="val-box"><div class="label">Realized Profit</div><div class="value pos" id="realized">$0.00</div></div>
                <div class="val-box"><div class="label">RSI</div><div class="value" id="rsi">--</div></div>
                <div class="val-box"><div class="label">BB Low</div><div class="value" id="bb_low">--</div></div>
                <div class="val-box"><div class="label">BB High</div><div class="value" id="bb_high">--</div></div>
            </div>
        </div>

        <div class="card">
            <div style="font-size:0.9em; color:#888; margin-bottom: 5px;">Wallet Balance</div>
            <div class="grid">
                <div class="val-box"><div class="label">USDT Available</div><div class="value" id="usdt">--</div></div>
                <div class="val-box"><div class="label">BTC Available</div><div class="value" id="btc">--</div></div>
            </div>
        </div>

        <div class="card">
            <div class="log-box" id="logs">Waiting for data...</div>
        </div>
    </div>
</body>
</html>
`
