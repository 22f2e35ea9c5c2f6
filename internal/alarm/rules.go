package alarm

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/event"
)

// Rule matches on the taxonomy fields; an empty field matches anything.
type Rule struct {
	Category string `yaml:"category"`
	Type     string `yaml:"type"`
	Subtype  string `yaml:"subtype"`
}

func (r Rule) matches(e *event.StandardizedEvent) bool {
	if r.Category != "" && r.Category != string(e.Category) {
		return false
	}
	if r.Type != "" && r.Type != string(e.Type) {
		return false
	}
	if r.Subtype != "" && r.Subtype != string(e.Subtype) {
		return false
	}
	return true
}

type ruleFile struct {
	Rules                []Rule   `yaml:"rules"`
	IntrusionDeviceTypes []string `yaml:"intrusion_device_types"`
}

// RuleSet classifies events as security risks. Built-in defaults apply
// unless a rules file overrides them; the file is hot-reloaded.
type RuleSet struct {
	mu             sync.RWMutex
	rules          []Rule
	intrusionTypes map[string]bool
	path           string
}

func defaultRules() []Rule {
	return []Rule{
		{Category: string(event.CategoryAccessControl), Type: string(event.TypeAccessDenied), Subtype: string(event.SubtypeInvalidCredential)},
		{Category: string(event.CategoryAccessControl), Type: string(event.TypeAccessDenied), Subtype: string(event.SubtypeAntipassbackViolation)},
		{Category: string(event.CategoryAccessControl), Type: string(event.TypeDoorForcedOpen)},
		{Category: string(event.CategoryAnalytics), Type: string(event.TypeIntrusion)},
		{Category: string(event.CategoryAnalytics), Type: string(event.TypeLineCrossing)},
	}
}

func defaultIntrusionTypes() map[string]bool {
	return map[string]bool{
		"door_contact":  true,
		"window_sensor": true,
		"motion_sensor": true,
	}
}

// NewRuleSet returns the built-in rule table. Path may be empty; if set,
// the file is loaded immediately and again on change via StartWatcher.
func NewRuleSet(path string) *RuleSet {
	rs := &RuleSet{
		rules:          defaultRules(),
		intrusionTypes: defaultIntrusionTypes(),
		path:           path,
	}
	if path != "" {
		if err := rs.Reload(); err != nil {
			log.Printf("[WARN] Alarm Rules: failed to load %s (%v), using defaults", path, err)
		}
	}
	return rs
}

// Reload re-reads the rules file and swaps the table atomically.
func (rs *RuleSet) Reload() error {
	raw, err := os.ReadFile(rs.path)
	if err != nil {
		return err
	}
	var rf ruleFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return fmt.Errorf("parse rules file: %w", err)
	}
	if len(rf.Rules) == 0 {
		return fmt.Errorf("rules file %s contains no rules", rs.path)
	}

	types := defaultIntrusionTypes()
	if len(rf.IntrusionDeviceTypes) > 0 {
		types = make(map[string]bool, len(rf.IntrusionDeviceTypes))
		for _, t := range rf.IntrusionDeviceTypes {
			types[t] = true
		}
	}

	rs.mu.Lock()
	rs.rules = rf.Rules
	rs.intrusionTypes = types
	rs.mu.Unlock()
	log.Printf("Alarm Rules: loaded %d rules from %s", len(rf.Rules), rs.path)
	return nil
}

// StartWatcher hot-reloads the rules file on write. No-op without a path.
func (rs *RuleSet) StartWatcher(ctx context.Context) {
	if rs.path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[WARN] Alarm Rules Watcher: fsnotify init failed: %v", err)
		return
	}
	if err := watcher.Add(rs.path); err != nil {
		log.Printf("[WARN] Alarm Rules Watcher: cannot watch %s: %v", rs.path, err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Write == fsnotify.Write || ev.Op&fsnotify.Create == fsnotify.Create {
					// Editors often truncate-then-write; give the write a beat.
					time.Sleep(100 * time.Millisecond)
					if err := rs.Reload(); err != nil {
						log.Printf("[ERROR] Alarm Rules Watcher: reload failed: %v", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[ERROR] Alarm Rules Watcher: %v", err)
			}
		}
	}()
}

// IsSecurityRisk is the pure risk predicate: does this event, from this
// device, constitute a security risk worth triggering an armed zone?
func (rs *RuleSet) IsSecurityRisk(e *event.StandardizedEvent, dev *data.Device) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	for _, r := range rs.rules {
		if r.matches(e) {
			return true
		}
	}

	// A plain state change is a risk only when it comes from an
	// intrusion-class device and the state reads as activity.
	if e.Category == event.CategoryDeviceState && e.Type == event.TypeStateChanged && dev != nil {
		if rs.intrusionTypes[dev.DeviceType] && e.Payload.DisplayState != nil {
			switch *e.Payload.DisplayState {
			case "open", "motion", "alert":
				return true
			}
		}
	}
	return false
}
