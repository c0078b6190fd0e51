// Package config loads the coordinator configuration from the `server:`
// section of config.yaml (the `agent:` key is ignored by the coordinator).
//
// Config fields:
//   - HTTPPort        port for the REST API and websocket endpoints (default 8080)
//   - LogLevel        debug | info | warn | error (default info)
//   - Auth.Mode       "apikey" or "none"
//   - Auth.KeyEnv     environment variable holding the expected API key
//   - Auth.Header     HTTP header name (default "x-api-key")
//   - Snapshot.TTL    age at which a cached snapshot is reported stale (default 5m)
//   - Snapshot.Path   SQLite file for write-through persistence (empty: memory only)
//   - Stream.Interval /ws/stream broadcast period (default 5s)
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
