package trigger

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const (
	// CooldownMinutes is the minimum gap between proactive engagements.
	CooldownMinutes = 60
	// QuietHourStart and QuietHourEnd bound the local hours during
	// which proactive engagement is suppressed (23:00 through 07:00).
	QuietHourStart = 23
	QuietHourEnd   = 7
	// RecentInteractionHours is how far back to look for a genuine
	// user interaction before suppressing a proactive trigger.
	RecentInteractionHours = 2
)

// Safeguard is a single blocking check result.
type Safeguard struct {
	Blocked bool
	Reason  string
}

var episodeTimestamp = regexp.MustCompile(`(?m)^## (\d{1,2}):`)

// checkQuietHours blocks engagement between QuietHourStart and
// QuietHourEnd local time.
func (e *Evaluator) checkQuietHours(now time.Time) Safeguard {
	hour := now.Hour()
	if hour >= QuietHourStart || hour < QuietHourEnd {
		return Safeguard{true, fmt.Sprintf("Quiet hours (%02d:00 local)", hour)}
	}
	return Safeguard{}
}

// checkCooldown blocks engagement within CooldownMinutes of the last
// recorded proactive trigger.
func (e *Evaluator) checkCooldown(now time.Time) Safeguard {
	raw, err := os.ReadFile(e.lastTriggerPath)
	if err != nil {
		return Safeguard{}
	}
	var unixSeconds int64
	if _, err := fmt.Sscanf(string(raw), "%d", &unixSeconds); err != nil {
		return Safeguard{}
	}
	last := time.Unix(unixSeconds, 0)
	elapsed := now.Sub(last).Minutes()
	if elapsed < CooldownMinutes {
		return Safeguard{true, fmt.Sprintf("Cooldown active (%.0f min since last trigger)", elapsed)}
	}
	return Safeguard{}
}

// checkRecentInteraction blocks engagement if today's episode log
// shows a "## HH:" entry within RecentInteractionHours.
func (e *Evaluator) checkRecentInteraction(now time.Time) Safeguard {
	path := filepath.Join(e.episodesDir, now.Format("2006-01-02")+".md")
	f, err := os.Open(path)
	if err != nil {
		return Safeguard{}
	}
	defer f.Close()

	cutoff := now.Add(-RecentInteractionHours * time.Hour)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		m := episodeTimestamp.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var hour int
		fmt.Sscanf(m[1], "%d", &hour)
		entryTime := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
		if entryTime.After(cutoff) {
			return Safeguard{true, fmt.Sprintf("Recent interaction at %02d:00", hour)}
		}
	}
	return Safeguard{}
}

// checkInMeeting blocks engagement when a calendar event is currently
// in progress (minutes_until <= 0 and not yet ended).
func (e *Evaluator) checkInMeeting(ctx context.Context, now time.Time) Safeguard {
	if e.calendar == nil {
		return Safeguard{}
	}
	events, err := e.calendar.UpcomingEvents(ctx, 0)
	if err != nil {
		return Safeguard{}
	}
	for _, ev := range events {
		if ev.MinutesUntil <= 0 {
			return Safeguard{true, fmt.Sprintf("In meeting: %s", ev.Title)}
		}
	}
	return Safeguard{}
}

// checkSafeguards runs the ordered safeguard chain, short-circuiting
// on the first block.
func (e *Evaluator) checkSafeguards(ctx context.Context, now time.Time) (blocked bool, reason string, lowBattery bool) {
	if sg := e.checkQuietHours(now); sg.Blocked {
		return true, sg.Reason, false
	}
	if sg := e.checkCooldown(now); sg.Blocked {
		return true, sg.Reason, false
	}
	if sg := e.checkRecentInteraction(now); sg.Blocked {
		return true, sg.Reason, false
	}
	if sg := e.checkInMeeting(ctx, now); sg.Blocked {
		return true, sg.Reason, false
	}

	if e.location != nil {
		if batteries, err := e.location.BatteryTriggers(ctx); err == nil {
			for _, b := range batteries {
				if b.SuppressNonUrgent {
					lowBattery = true
				}
			}
		}
	}

	return false, "", lowBattery
}
