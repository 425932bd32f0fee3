/*
Package metrics exposes Prometheus metrics for the directory server.

Collectors cover the write path (operation counts and durations by kind
and outcome), plugin aborts by plugin and phase, post-commit cache reloads
by change flag, and replication change log appends. Register installs the
collectors; Handler serves them over HTTP for scraping.
*/
package metrics
