package directory

import (
	"fmt"
	"time"

	"github.com/vaccibot/vaccibot/internal/links"
	"github.com/vaccibot/vaccibot/internal/models"
	"github.com/vaccibot/vaccibot/internal/util"
)

// RenderLine produces the display fragment for one facility: name, address,
// open/closed badge, today's hours, and a map link. The markup is the simple
// subset the presentation sink accepts (<b>, <i>, <br>, <a>).
func RenderLine(f models.Facility, now time.Time) string {
	open := util.IsOpenAt(f.TodayRanges, util.MinutesOfDay(now))
	badge := "🔴 Fermé"
	if open {
		badge = "🟢 Ouvert"
	}

	line := fmt.Sprintf("🔹 <b>%s</b><br>%s, %s<br>%s", f.Name, f.Address, f.City, badge)
	if len(f.TodayRanges) > 0 {
		line += fmt.Sprintf(" — <i>%s : %s</i>", util.DayLabel(now), util.FormatRanges(f.TodayRanges))
	}
	line += fmt.Sprintf(`<br><a href="%s">📍 Itinéraire</a><br><br>`, links.MapsDirections(f.Address, f.City))
	return line
}
