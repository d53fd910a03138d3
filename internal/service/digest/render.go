package digest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bugtally/notify-engine/internal/model"
)

// Content is one rendered digest, ready for the channel senders.
type Content struct {
	Subject string
	Body    string
}

// Render flattens a claimed batch into a single message. Items are grouped
// by issue so a noisy bug reads as one section instead of an interleaved
// stream, with groups ordered by issue ID and items oldest first within
// each group.
func Render(items []*model.QueuedNotification) Content {
	groups := make(map[int64][]*model.QueuedNotification)
	for _, item := range items {
		groups[item.BugID] = append(groups[item.BugID], item)
	}

	bugIDs := make([]int64, 0, len(groups))
	for id := range groups {
		bugIDs = append(bugIDs, id)
	}
	sort.Slice(bugIDs, func(i, j int) bool { return bugIDs[i] < bugIDs[j] })

	var b strings.Builder
	for _, bugID := range bugIDs {
		group := groups[bugID]
		sort.Slice(group, func(i, j int) bool { return group[i].DateCreated < group[j].DateCreated })

		fmt.Fprintf(&b, "Issue #%d (%d update", bugID, len(group))
		if len(group) > 1 {
			b.WriteString("s")
		}
		b.WriteString(")\n")

		for _, item := range group {
			fmt.Fprintf(&b, "  - [%s] %s\n", item.EventType, item.Subject)
			if body := strings.TrimSpace(item.Body); body != "" {
				fmt.Fprintf(&b, "    %s\n", firstLine(body))
			}
		}
		b.WriteString("\n")
	}

	return Content{
		Subject: fmt.Sprintf("Notification digest: %d update(s) across %d issue(s)", len(items), len(bugIDs)),
		Body:    strings.TrimRight(b.String(), "\n") + "\n",
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
