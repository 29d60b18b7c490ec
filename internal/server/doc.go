// Package server implements the HTTP boundary using Echo framework.
//
// Routes: WebSocket endpoint (/ws/:user_id, upgrade + read pump + frame
// dispatch), realtime stats (/api/websocket/stats), health and metrics.
// Connection limits guard the WebSocket endpoint before the upgrade.
package server
