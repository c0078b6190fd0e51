// Package config loads and watches the agent configuration file (config.yaml).
//
// Only the `agent:` section is read:
//   - coordinator_url: websocket base URL of the coordinator
//   - log_level: debug | info | warn | error
//   - source: mode (rod|file), devtools_url, url_pattern, overlay, file, url
//   - poll: max_attempts, initial_delay, multiplier, max_delay, settle_delay
//   - link: buffer_size, auth {mode, header, key_env}
//
// Load(path) reads the YAML file, applies defaults (30 attempts, 500ms
// doubling by 1.5 up to 3s, 1s settle, 64-message link buffer), then
// validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after each
// event so atomic-save editors (vim, VS Code) keep being tracked.
package config
