package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Galaxy Trader Configuration

[trading]
# Minimum profit (credits) for a trade to be considered
min_profit = 5000.0
# Minimum return on invested capital (profit / buy cost)
min_roi = 0.05
# Weight of normalized travel distance in the score penalty (0..1)
distance_penalty = 0.5
# Weight of the buy/sell price deviation bonus
quality_weight = 0.25
# Fraction of the cargo hold to fill per trade
cargo_fill_target = 0.9
# Fraction of sell revenue lost to docking fees and taxes
fee_rate = 0.0025
# Maximum candidate pairs scored per evaluation tick
work_budget = 250

[cache]
# How long a discovered opportunity stays servable
ttl = "10m"
# Only opportunities at or above this profit are cached
min_profit_to_cache = 10000.0
# Hard cap on cached entries (oldest compacted first)
max_entries = 400

[reservation]
# How long a claim is held before it lapses
ttl = "15m"

[danger]
# Master blacklist toggle
enabled = true
# Severity (1-5) at or above which a zone is blocked
threshold = 3
# Rolling window for threat report decay
window = "20m"

[progression]
xp_base = 10.0
xp_multiplier = 1.0
# Trade value divisor in the XP formula
normalization = 50000.0
quality_weight = 0.5
per_hop_bonus = 0.1
hop_cap = 5
min_xp_per_trade = 1.0
max_xp_per_trade = 100.0
# Levels at which XP freezes until a certification completes
gate_levels = [3, 6, 9, 12]
# Simulated duration of a certification action
training_time = "30s"

[engine]
tick_interval = "1s"
# Simulated travel time per gate jump, in ticks
travel_ticks_per_hop = 2
# Maintenance sweep cadence (cron expression)
sweep_schedule = "@every 1m"
backoff_initial = "2s"
backoff_max = "2m"
backoff_factor = 2.0

[server]
# Read-only status API
enabled = false
addr = ":8420"

[store]
# SQLite database path (empty = default config dir)
# db_path = ""

[log]
level = "info"
console = true
file = true
`

func writeTemplate(configDir string) error {
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
