// config.go - Konfigurationsfunktionen fuer die DNN-Engine
//
// Dieses Modul enthaelt:
// - Host: Gibt die Serving-Adresse zurueck (DNN_HOST)
// - NumRequests: Gibt die Anzahl der Inferenz-Requests zurueck (DNN_NIREQ)
// - Conv2DThreads: Gibt die Thread-Anzahl fuer Conv2D zurueck (DNN_CONV2D_THREADS)
// - AllowedOrigins: Gibt die erlaubten CORS-Origins zurueck (DNN_ORIGINS)
// - LogLevel: Gibt das Log-Level zurueck (DNN_DEBUG)
// - Var/Uint/Bool: Utility-Getter
// - AsMap: Gibt alle Konfigurationen als Map zurueck
package envconfig

import (
	"log/slog"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Host gibt die Adresse fuer den Inferenz-Server zurueck
// Konfigurierbar via DNN_HOST
// Default: 127.0.0.1:9400
func Host() string {
	defaultPort := "9400"

	s := Var("DNN_HOST")
	if s == "" {
		return net.JoinHostPort("127.0.0.1", defaultPort)
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host, port = s, defaultPort
	}
	if host == "" {
		host = "127.0.0.1"
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return net.JoinHostPort(host, port)
}

// NumRequests gibt die Anzahl der vorab angelegten Inferenz-Requests zurueck
// Konfigurierbar via DNN_NIREQ
// Default: NumCPU/2 + 1
func NumRequests() uint {
	return Uint("DNN_NIREQ", uint(runtime.NumCPU()/2+1))()
}

// Conv2DThreads gibt die Thread-Anzahl fuer die Conv2D-Ausfuehrung zurueck
// Konfigurierbar via DNN_CONV2D_THREADS
// 0 bedeutet automatisch (NumCPU)
func Conv2DThreads() uint {
	return Uint("DNN_CONV2D_THREADS", 0)()
}

// AllowedOrigins gibt die erlaubten CORS-Origins zurueck
// Konfigurierbar via DNN_ORIGINS (kommagetrennt), lokale Hosts sind
// immer erlaubt
func AllowedOrigins() []string {
	var origins []string
	if s := Var("DNN_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			"http://"+origin,
			"https://"+origin,
			"http://"+net.JoinHostPort(origin, "*"),
			"https://"+net.JoinHostPort(origin, "*"),
		)
	}
	return origins
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via DNN_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("DNN_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	return func() bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return false
	}
}

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"DNN_DEBUG":          {"DNN_DEBUG", LogLevel(), "Show additional debug information (e.g. DNN_DEBUG=1)"},
		"DNN_HOST":           {"DNN_HOST", Host(), "IP address for the inference server (default 127.0.0.1:9400)"},
		"DNN_NIREQ":          {"DNN_NIREQ", NumRequests(), "Number of pre-allocated inference requests"},
		"DNN_ORIGINS":        {"DNN_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"DNN_CONV2D_THREADS": {"DNN_CONV2D_THREADS", Conv2DThreads(), "Threads for conv2d execution (0 = auto)"},
	}
}
