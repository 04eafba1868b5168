// Package actions composes the directory, specialist resolver, link builder,
// and geolocation requester into the user-facing operations the intake flow
// delegates to.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vaccibot/vaccibot/internal/directory"
	"github.com/vaccibot/vaccibot/internal/flow"
	"github.com/vaccibot/vaccibot/internal/geoloc"
	"github.com/vaccibot/vaccibot/internal/links"
	"github.com/vaccibot/vaccibot/internal/models"
	"github.com/vaccibot/vaccibot/internal/specialist"
)

// nearestLimit caps how many facilities one proposal lists.
const nearestLimit = 3

// listDelay is the typing delay before a multi-line facility list.
const listDelay = 800 * time.Millisecond

// User-facing texts for orchestrated actions.
const (
	msgNearbyHeader   = "Voici des pharmacies proches où vous pouvez vous faire vacciner 💉 :<br>"
	msgCityHeaderFmt  = "Voici des pharmacies à %s 💉 :<br>"
	msgNoPharmacy     = "Je n’ai trouvé aucune pharmacie à proximité immédiate. Donnez-moi votre ville pour affiner la recherche."
	msgSpecialistFmt  = `Vous pouvez consulter un <b>%s</b> 🩺 pour vos symptômes.<br>👉 <a href="%s">Prendre RDV sur Doctolib</a><br>👉 <a href="%s">Voir sur Google Maps</a>`
	msgSearchingPos   = "Je recherche votre position…"
	msgPositionFound  = "Localisation obtenue 📍"
	msgOpeningResults = "Localisation obtenue 📍 J’ouvre les résultats…"
	msgPositionDenied = "Impossible d’accéder à la géolocalisation. Donnez-moi votre ville :"
	fallbackCity      = "votre ville"
)

// Orchestrator implements flow.Orchestrator. It owns the side-effecting
// operations: facility lookups, outbound links, and asynchronous geolocation
// whose completions re-enter session state.
type Orchestrator struct {
	stateManager flow.StateManager
	msg          flow.MessagingService
	directory    *directory.Directory
	geo          *geoloc.Requester
	opener       links.Opener
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the wall clock used for opening-hours badges.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithOpener overrides how outbound links are opened after a geolocation
// completes.
func WithOpener(op links.Opener) Option {
	return func(o *Orchestrator) { o.opener = op }
}

// NewOrchestrator wires the orchestrator. The default opener only logs URLs.
func NewOrchestrator(sm flow.StateManager, msg flow.MessagingService, dir *directory.Directory, geo *geoloc.Requester, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stateManager: sm,
		msg:          msg,
		directory:    dir,
		geo:          geo,
		opener:       links.LogOpener{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProposeNearbyFacilities sends the facility list for the participant's known
// position, or for their city when no position is stored. An empty result
// produces the refine-your-search fallback instead of a bare header.
func (o *Orchestrator) ProposeNearbyFacilities(ctx context.Context, participantID string) error {
	if _, err := o.directory.Load(ctx); err != nil {
		slog.Error("Orchestrator.ProposeNearbyFacilities: directory load failed", "participantID", participantID, "error", err)
		return o.msg.SendMessage(ctx, participantID, msgNoPharmacy)
	}

	pos, hasPos, err := o.storedPosition(ctx, participantID)
	if err != nil {
		return err
	}
	if hasPos {
		ranked := o.directory.FindNearest(pos.Latitude, pos.Longitude, nearestLimit)
		if len(ranked) == 0 {
			return o.msg.SendMessage(ctx, participantID, msgNoPharmacy)
		}
		var b strings.Builder
		b.WriteString(msgNearbyHeader)
		for _, r := range ranked {
			b.WriteString(directory.RenderLine(r.Facility, o.now()))
		}
		return o.msg.SendMessageWithDelay(ctx, participantID, b.String(), listDelay)
	}

	city, err := o.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLastCity)
	if err != nil {
		return err
	}
	if city != "" {
		matches := o.directory.FilterCity(city, nearestLimit)
		if len(matches) == 0 {
			return o.msg.SendMessage(ctx, participantID, msgNoPharmacy)
		}
		var b strings.Builder
		fmt.Fprintf(&b, msgCityHeaderFmt, city)
		for _, f := range matches {
			b.WriteString(directory.RenderLine(f, o.now()))
		}
		return o.msg.SendMessageWithDelay(ctx, participantID, b.String(), listDelay)
	}

	return o.msg.SendMessage(ctx, participantID, msgNoPharmacy)
}

// ProposeSpecialistLinks resolves the specialty from the stored symptoms and
// sends the booking and map links for it.
func (o *Orchestrator) ProposeSpecialistLinks(ctx context.Context, participantID string) error {
	body, _, _, err := o.specialistProposal(ctx, participantID)
	if err != nil {
		return err
	}
	return o.msg.SendMessage(ctx, participantID, body)
}

// GeolocateForVaccination resolves the position asynchronously. On success
// the completion stores the position, lists nearby facilities, follows up
// with the specialist links, and ends the session. On failure it falls back
// to asking for a city. A completion whose issuing turn no longer matches
// the session turn is dropped.
func (o *Orchestrator) GeolocateForVaccination(ctx context.Context, participantID string, turn int64) error {
	if err := o.msg.SendMessage(ctx, participantID, msgSearchingPos); err != nil {
		return err
	}
	o.geo.Request(ctx, turn, func(res geoloc.Result) {
		cbCtx := context.Background()
		if !o.resultCurrent(cbCtx, participantID, res) {
			return
		}
		if res.Err != nil {
			o.geolocationDenied(cbCtx, participantID, models.StateEnsureLocationAwaitCity)
			return
		}
		if err := o.storePosition(cbCtx, participantID, res.Pos); err != nil {
			slog.Error("Orchestrator.GeolocateForVaccination: storing position failed", "participantID", participantID, "error", err)
			return
		}
		if err := o.msg.SendMessage(cbCtx, participantID, msgPositionFound); err != nil {
			slog.Error("Orchestrator.GeolocateForVaccination: sending confirmation failed", "participantID", participantID, "error", err)
			return
		}
		if err := o.ProposeNearbyFacilities(cbCtx, participantID); err != nil {
			slog.Error("Orchestrator.GeolocateForVaccination: proposing facilities failed", "participantID", participantID, "error", err)
			return
		}
		o.finishWithSpecialist(cbCtx, participantID)
	})
	return nil
}

// GeolocateForSpecialist resolves the position asynchronously. On success the
// completion stores the position, sends the specialist links, opens the map
// search (and the booking page when a city is known), and ends the session;
// on failure it falls back to asking for a city.
func (o *Orchestrator) GeolocateForSpecialist(ctx context.Context, participantID string, turn int64) error {
	if err := o.msg.SendMessage(ctx, participantID, msgSearchingPos); err != nil {
		return err
	}
	o.geo.Request(ctx, turn, func(res geoloc.Result) {
		cbCtx := context.Background()
		if !o.resultCurrent(cbCtx, participantID, res) {
			return
		}
		if res.Err != nil {
			o.geolocationDenied(cbCtx, participantID, models.StateSpecialistAwaitCity)
			return
		}
		if err := o.storePosition(cbCtx, participantID, res.Pos); err != nil {
			slog.Error("Orchestrator.GeolocateForSpecialist: storing position failed", "participantID", participantID, "error", err)
			return
		}
		if err := o.msg.SendMessage(cbCtx, participantID, msgOpeningResults); err != nil {
			slog.Error("Orchestrator.GeolocateForSpecialist: sending confirmation failed", "participantID", participantID, "error", err)
			return
		}
		body, doctolibURL, mapsURL, err := o.specialistProposal(cbCtx, participantID)
		if err != nil {
			slog.Error("Orchestrator.GeolocateForSpecialist: building proposal failed", "participantID", participantID, "error", err)
			return
		}
		if err := o.msg.SendMessage(cbCtx, participantID, body); err != nil {
			slog.Error("Orchestrator.GeolocateForSpecialist: sending proposal failed", "participantID", participantID, "error", err)
			return
		}
		// The booking page is only opened for a real city; the generic
		// placeholder would produce a junk URL.
		city, err := o.stateManager.GetStateData(cbCtx, participantID, models.FlowTypeIntake, models.DataKeyLastCity)
		if err == nil && city != "" {
			o.openURL(doctolibURL)
		}
		o.openURL(mapsURL)
		if err := o.stateManager.SetCurrentState(cbCtx, participantID, models.FlowTypeIntake, models.StateEnd); err != nil {
			slog.Error("Orchestrator.GeolocateForSpecialist: ending session failed", "participantID", participantID, "error", err)
		}
	})
	return nil
}

// specialistProposal builds the specialist message and the two outbound URLs
// it embeds. With a stored position the map link is anchored there; otherwise
// it is a text search in the stored city, falling back to a generic one.
func (o *Orchestrator) specialistProposal(ctx context.Context, participantID string) (body, doctolibURL, mapsURL string, err error) {
	symptoms, err := o.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeySymptoms)
	if err != nil {
		return "", "", "", err
	}
	specialty := specialist.Resolve(symptoms)

	city, err := o.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLastCity)
	if err != nil {
		return "", "", "", err
	}
	if city == "" {
		city = fallbackCity
	}
	doctolibURL = links.Doctolib(specialty, city)

	pos, hasPos, err := o.storedPosition(ctx, participantID)
	if err != nil {
		return "", "", "", err
	}
	if hasPos {
		mapsURL = links.MapsSearchAround(specialty, pos.Latitude, pos.Longitude)
	} else {
		mapsURL = links.MapsSearchInCity(specialty, city)
	}

	body = fmt.Sprintf(msgSpecialistFmt, specialty, doctolibURL, mapsURL)
	return body, doctolibURL, mapsURL, nil
}

// finishWithSpecialist sends the specialist links, opens the map search (and
// the booking page when a city is known), and ends the session. It is the
// tail of a successful position-driven vaccination-center proposal.
func (o *Orchestrator) finishWithSpecialist(ctx context.Context, participantID string) {
	body, doctolibURL, mapsURL, err := o.specialistProposal(ctx, participantID)
	if err != nil {
		slog.Error("Orchestrator.finishWithSpecialist: building proposal failed", "participantID", participantID, "error", err)
		return
	}
	if err := o.msg.SendMessage(ctx, participantID, body); err != nil {
		slog.Error("Orchestrator.finishWithSpecialist: sending proposal failed", "participantID", participantID, "error", err)
		return
	}
	o.openURL(mapsURL)
	city, err := o.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLastCity)
	if err == nil && city != "" {
		o.openURL(doctolibURL)
	}
	if err := o.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, models.StateEnd); err != nil {
		slog.Error("Orchestrator.finishWithSpecialist: ending session failed", "participantID", participantID, "error", err)
	}
}

// geolocationDenied falls the sub-dialogue back to asking for a city.
func (o *Orchestrator) geolocationDenied(ctx context.Context, participantID string, awaitCity models.StateType) {
	if err := o.stateManager.SetCurrentState(ctx, participantID, models.FlowTypeIntake, awaitCity); err != nil {
		slog.Error("Orchestrator.geolocationDenied: transition failed", "participantID", participantID, "error", err)
		return
	}
	if err := o.msg.SendMessage(ctx, participantID, msgPositionDenied); err != nil {
		slog.Error("Orchestrator.geolocationDenied: sending fallback failed", "participantID", participantID, "error", err)
	}
}

// resultCurrent reports whether a geolocation completion still belongs to the
// session's current turn. Completions from earlier turns are dropped so a
// user who has since answered differently never gets a surprise reply.
func (o *Orchestrator) resultCurrent(ctx context.Context, participantID string, res geoloc.Result) bool {
	raw, err := o.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyTurn)
	if err != nil {
		slog.Error("Orchestrator.resultCurrent: reading turn failed", "participantID", participantID, "error", err)
		return false
	}
	current, _ := strconv.ParseInt(raw, 10, 64)
	if current != res.Turn {
		slog.Warn("Orchestrator.resultCurrent: dropping stale geolocation result",
			"participantID", participantID, "issuedTurn", res.Turn, "currentTurn", current)
		return false
	}
	return true
}

func (o *Orchestrator) storedPosition(ctx context.Context, participantID string) (models.Position, bool, error) {
	latRaw, err := o.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLatitude)
	if err != nil {
		return models.Position{}, false, err
	}
	lonRaw, err := o.stateManager.GetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLongitude)
	if err != nil {
		return models.Position{}, false, err
	}
	if latRaw == "" || lonRaw == "" {
		return models.Position{}, false, nil
	}
	lat, latErr := strconv.ParseFloat(latRaw, 64)
	lon, lonErr := strconv.ParseFloat(lonRaw, 64)
	if latErr != nil || lonErr != nil {
		slog.Warn("Orchestrator.storedPosition: malformed stored coordinates", "participantID", participantID, "lat", latRaw, "lon", lonRaw)
		return models.Position{}, false, nil
	}
	return models.Position{Latitude: lat, Longitude: lon}, true, nil
}

func (o *Orchestrator) storePosition(ctx context.Context, participantID string, pos models.Position) error {
	if err := o.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLatitude,
		strconv.FormatFloat(pos.Latitude, 'f', -1, 64)); err != nil {
		return fmt.Errorf("failed to store latitude: %w", err)
	}
	if err := o.stateManager.SetStateData(ctx, participantID, models.FlowTypeIntake, models.DataKeyLongitude,
		strconv.FormatFloat(pos.Longitude, 'f', -1, 64)); err != nil {
		return fmt.Errorf("failed to store longitude: %w", err)
	}
	return nil
}

func (o *Orchestrator) openURL(url string) {
	if err := o.opener.Open(url); err != nil {
		slog.Warn("Orchestrator.openURL: opening link failed", "url", url, "error", err)
	}
}
