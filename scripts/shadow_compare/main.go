// Command shadow_compare replays read-only requests against the Go API and
// the legacy scheduling backend and reports response differences. It is used
// during cutover to verify the two systems agree on the endpoints that
// matter; critical targets fail the run, optional ones are reported only.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type targetsFile struct {
	Targets []target `json:"targets"`
}

// defaultTargets covers the read surface of the scheduling API. The timetable
// grid and conflict views are critical because the legacy frontend renders
// straight off them.
var defaultTargets = []target{
	{Method: "GET", Path: "/api/dashboard/stats", Critical: true},
	{Method: "GET", Path: "/api/teachers", Critical: true},
	{Method: "GET", Path: "/api/students", Critical: true},
	{Method: "GET", Path: "/api/rooms", Critical: true},
	{Method: "GET", Path: "/api/classes", Critical: true},
	{Method: "GET", Path: "/api/timetable", Critical: true},
	{Method: "GET", Path: "/api/timetable/export?format=csv", Critical: false},
	{Method: "GET", Path: "/health", Critical: false},
}

// volatileKeys are stripped before comparing JSON bodies. Both systems stamp
// generated ids, timestamps and per-request metadata that will never match.
var volatileKeys = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"enrolled_at":        true,
	"meta":               true,
	"request_id":         true,
	"processing_time_ms": true,
	"cache_hit":          true,
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func main() {
	var (
		goBase      string
		legacyBase  string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3000", "legacy API base URL")
	flag.StringVar(&targetsPath, "targets", "", "optional JSON targets file overriding the built-in set")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets := defaultTargets
	if targetsPath != "" {
		loaded, err := loadTargets(targetsPath)
		if err != nil {
			log.Fatalf("failed to load targets: %v", err)
		}
		targets = loaded
	}

	client := &http.Client{Timeout: timeout}
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)

	for _, t := range targets {
		comp := compareTarget(client, goBase, legacyBase, t)
		if comp.Error != nil {
			if t.Critical {
				breaking++
			}
		} else if !comp.StatusMatch || !comp.BodyMatch {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f targetsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return f.Targets, nil
}

func compareTarget(client *http.Client, goBase, legacyBase string, tgt target) comparison {
	comp := comparison{Target: tgt}
	goResp, goDur, goErr := performRequest(client, goBase, tgt)
	legacyResp, legacyDur, legacyErr := performRequest(client, legacyBase, tgt)
	comp.DurationGo = goDur
	comp.DurationLegacy = legacyDur

	if goErr != nil {
		comp.Error = fmt.Errorf("go request failed: %w", goErr)
		return comp
	}
	if legacyErr != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", legacyErr)
		return comp
	}

	comp.GoStatus = goResp.StatusCode
	comp.LegacyStatus = legacyResp.StatusCode
	comp.StatusMatch = comp.GoStatus == comp.LegacyStatus

	defer goResp.Body.Close()
	defer legacyResp.Body.Close()

	goBody, err := io.ReadAll(goResp.Body)
	if err != nil {
		comp.Error = fmt.Errorf("read go body: %w", err)
		return comp
	}
	legacyBody, err := io.ReadAll(legacyResp.Body)
	if err != nil {
		comp.Error = fmt.Errorf("read legacy body: %w", err)
		return comp
	}

	comp.BodyMatch = bodiesEqual(goBody, legacyBody)

	return comp
}

func performRequest(client *http.Client, base string, tgt target) (*http.Response, time.Duration, error) {
	if client == nil {
		return nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	aj = stripVolatile(aj)
	bj = stripVolatile(bj)
	return reflect.DeepEqual(aj, bj)
}

func stripVolatile(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			if volatileKeys[k] {
				delete(val, k)
				continue
			}
			val[k] = stripVolatile(v2)
		}
		return val
	case []interface{}:
		for i, v2 := range val {
			val[i] = stripVolatile(v2)
		}
		return val
	default:
		return v
	}
}

func printReport(comparisons []comparison) {
	for _, comp := range comparisons {
		label := "optional"
		if comp.Target.Critical {
			label = "critical"
		}
		if comp.Error != nil {
			fmt.Printf("[%s] %s %s: ERROR %v\n", label, comp.Target.Method, comp.Target.Path, comp.Error)
			continue
		}
		verdict := "match"
		if !comp.StatusMatch {
			verdict = fmt.Sprintf("status mismatch go=%d legacy=%d", comp.GoStatus, comp.LegacyStatus)
		} else if !comp.BodyMatch {
			verdict = "body mismatch"
		}
		fmt.Printf("[%s] %s %s: %s (go %s, legacy %s)\n",
			label, comp.Target.Method, comp.Target.Path, verdict,
			comp.DurationGo.Round(time.Millisecond), comp.DurationLegacy.Round(time.Millisecond))
	}
}
