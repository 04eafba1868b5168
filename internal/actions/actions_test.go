package actions

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vaccibot/vaccibot/internal/directory"
	"github.com/vaccibot/vaccibot/internal/flow"
	"github.com/vaccibot/vaccibot/internal/geoloc"
	"github.com/vaccibot/vaccibot/internal/models"
	"github.com/vaccibot/vaccibot/internal/store"
)

const testParticipant = "user-1"

// Monday, so the fixture's Lundi column is "today".
var testNow = time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)

type recordingMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMessenger) SendMessage(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	return nil
}

func (m *recordingMessenger) SendMessageWithDelay(ctx context.Context, to, body string, delay time.Duration) error {
	return m.SendMessage(ctx, to, body)
}

func (m *recordingMessenger) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *recordingOpener) Open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return nil
}

func (o *recordingOpener) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.urls))
	copy(out, o.urls)
	return out
}

func newTestOrchestrator(t *testing.T, provider geoloc.Provider) (*Orchestrator, *flow.StoreBasedStateManager, *recordingMessenger, *recordingOpener) {
	t.Helper()
	sm := flow.NewStoreBasedStateManager(store.NewInMemoryStore())
	msg := &recordingMessenger{}
	opener := &recordingOpener{}
	dir := directory.New("../directory/testdata/pharmacies.csv", directory.WithClock(func() time.Time { return testNow }))
	orch := NewOrchestrator(sm, msg, dir, geoloc.NewRequester(provider),
		WithClock(func() time.Time { return testNow }),
		WithOpener(opener))
	return orch, sm, msg, opener
}

func setData(t *testing.T, sm *flow.StoreBasedStateManager, key models.DataKey, value string) {
	t.Helper()
	if err := sm.SetStateData(context.Background(), testParticipant, models.FlowTypeIntake, key, value); err != nil {
		t.Fatalf("SetStateData(%s) failed: %v", key, err)
	}
}

func waitForState(t *testing.T, sm *flow.StoreBasedStateManager, want models.StateType) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := sm.GetCurrentState(context.Background(), testParticipant, models.FlowTypeIntake)
		if err != nil {
			t.Fatalf("GetCurrentState failed: %v", err)
		}
		if got == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	got, _ := sm.GetCurrentState(context.Background(), testParticipant, models.FlowTypeIntake)
	t.Fatalf("timed out waiting for step %s, still at %s", want, got)
}

func TestProposeNearbyFacilitiesWithPosition(t *testing.T) {
	orch, sm, msg, _ := newTestOrchestrator(t, geoloc.DeniedProvider{})
	setData(t, sm, models.DataKeyLatitude, "45.7600")
	setData(t, sm, models.DataKeyLongitude, "4.8350")

	if err := orch.ProposeNearbyFacilities(context.Background(), testParticipant); err != nil {
		t.Fatalf("ProposeNearbyFacilities failed: %v", err)
	}
	sent := msg.messages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	body := sent[0]
	if !strings.HasPrefix(body, msgNearbyHeader) {
		t.Errorf("message does not start with nearby header: %q", body)
	}
	if !strings.Contains(body, "Pharmacie de la Gare") || !strings.Contains(body, "Pharmacie Centrale") {
		t.Errorf("message missing Lyon pharmacies: %q", body)
	}
	// Centrale (45.7578, 4.8320) is closer to the query point than Gare
	// (45.7640, 4.8357), so it must be listed first.
	if strings.Index(body, "Pharmacie Centrale") > strings.Index(body, "Pharmacie de la Gare") {
		t.Errorf("facilities not sorted by distance: %q", body)
	}
	// Monday morning: the Gare pharmacy is open per its Lundi hours.
	if !strings.Contains(body, "🟢 Ouvert") {
		t.Errorf("expected an open badge in %q", body)
	}
}

func TestProposeNearbyFacilitiesByCity(t *testing.T) {
	orch, sm, msg, _ := newTestOrchestrator(t, geoloc.DeniedProvider{})
	setData(t, sm, models.DataKeyLastCity, "Lyon")

	if err := orch.ProposeNearbyFacilities(context.Background(), testParticipant); err != nil {
		t.Fatalf("ProposeNearbyFacilities failed: %v", err)
	}
	sent := msg.messages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if !strings.HasPrefix(sent[0], "Voici des pharmacies à Lyon") {
		t.Errorf("message does not start with city header: %q", sent[0])
	}
	if strings.Contains(sent[0], "Paris") {
		t.Errorf("city filter leaked another city: %q", sent[0])
	}
}

func TestProposeNearbyFacilitiesNoMatchFallsBack(t *testing.T) {
	orch, sm, msg, _ := newTestOrchestrator(t, geoloc.DeniedProvider{})
	setData(t, sm, models.DataKeyLastCity, "Marseille")

	if err := orch.ProposeNearbyFacilities(context.Background(), testParticipant); err != nil {
		t.Fatalf("ProposeNearbyFacilities failed: %v", err)
	}
	sent := msg.messages()
	if len(sent) != 1 || sent[0] != msgNoPharmacy {
		t.Errorf("expected fallback message, got %v", sent)
	}
}

func TestProposeSpecialistLinks(t *testing.T) {
	orch, sm, msg, _ := newTestOrchestrator(t, geoloc.DeniedProvider{})
	setData(t, sm, models.DataKeySymptoms, "j'ai mal aux dents")
	setData(t, sm, models.DataKeyLastCity, "Lyon")

	if err := orch.ProposeSpecialistLinks(context.Background(), testParticipant); err != nil {
		t.Fatalf("ProposeSpecialistLinks failed: %v", err)
	}
	sent := msg.messages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	body := sent[0]
	if !strings.Contains(body, "<b>dentiste</b>") {
		t.Errorf("expected dentist specialty in %q", body)
	}
	if !strings.Contains(body, "https://www.doctolib.fr/dentiste/Lyon") {
		t.Errorf("expected booking link in %q", body)
	}
	if !strings.Contains(body, "https://www.google.com/maps/search/") {
		t.Errorf("expected map link in %q", body)
	}
}

func TestProposeSpecialistLinksWithoutCityUsesFallback(t *testing.T) {
	orch, sm, msg, _ := newTestOrchestrator(t, geoloc.DeniedProvider{})
	setData(t, sm, models.DataKeySymptoms, "boutons sur la peau")

	if err := orch.ProposeSpecialistLinks(context.Background(), testParticipant); err != nil {
		t.Fatalf("ProposeSpecialistLinks failed: %v", err)
	}
	body := msg.messages()[0]
	if !strings.Contains(body, "<b>dermatologue</b>") {
		t.Errorf("expected dermatologist specialty in %q", body)
	}
	if !strings.Contains(body, "votre%20ville") {
		t.Errorf("expected generic city placeholder in link: %q", body)
	}
}

func TestGeolocateForSpecialistSuccessEndsSession(t *testing.T) {
	orch, sm, msg, opener := newTestOrchestrator(t, geoloc.StaticProvider{Pos: models.Position{Latitude: 45.76, Longitude: 4.83}})
	setData(t, sm, models.DataKeySymptoms, "mal à la gorge")
	setData(t, sm, models.DataKeyTurn, "7")
	if err := sm.SetCurrentState(context.Background(), testParticipant, models.FlowTypeIntake, models.StateSpecialistGeoConsent); err != nil {
		t.Fatalf("SetCurrentState failed: %v", err)
	}

	if err := orch.GeolocateForSpecialist(context.Background(), testParticipant, 7); err != nil {
		t.Fatalf("GeolocateForSpecialist failed: %v", err)
	}
	waitForState(t, sm, models.StateEnd)

	sent := msg.messages()
	if sent[0] != msgSearchingPos {
		t.Errorf("first message = %q, want %q", sent[0], msgSearchingPos)
	}
	joined := strings.Join(sent, "\n")
	if !strings.Contains(joined, msgOpeningResults) {
		t.Errorf("expected position confirmation in %q", joined)
	}
	if !strings.Contains(joined, "médecin généraliste") {
		t.Errorf("expected GP proposal in %q", joined)
	}

	// No city is stored, so only the map search opens; a booking page built
	// from the generic city placeholder must never launch.
	urls := opener.opened()
	if len(urls) != 1 {
		t.Fatalf("expected 1 opened link, got %v", urls)
	}
	if !strings.Contains(urls[0], "google.com/maps") {
		t.Errorf("opened link = %q, want a map link", urls[0])
	}

	lat, err := sm.GetStateData(context.Background(), testParticipant, models.FlowTypeIntake, models.DataKeyLatitude)
	if err != nil || lat == "" {
		t.Errorf("expected stored latitude, got %q (err %v)", lat, err)
	}
}

func TestGeolocateForSpecialistWithCityOpensBookingPage(t *testing.T) {
	orch, sm, _, opener := newTestOrchestrator(t, geoloc.StaticProvider{Pos: models.Position{Latitude: 45.76, Longitude: 4.83}})
	setData(t, sm, models.DataKeySymptoms, "mal aux dents")
	setData(t, sm, models.DataKeyLastCity, "Lyon")
	setData(t, sm, models.DataKeyTurn, "4")
	if err := sm.SetCurrentState(context.Background(), testParticipant, models.FlowTypeIntake, models.StateSpecialistGeoConsent); err != nil {
		t.Fatalf("SetCurrentState failed: %v", err)
	}

	if err := orch.GeolocateForSpecialist(context.Background(), testParticipant, 4); err != nil {
		t.Fatalf("GeolocateForSpecialist failed: %v", err)
	}
	waitForState(t, sm, models.StateEnd)

	urls := opener.opened()
	if len(urls) != 2 {
		t.Fatalf("expected 2 opened links, got %v", urls)
	}
	if !strings.Contains(urls[0], "doctolib.fr/dentiste/Lyon") {
		t.Errorf("first opened link = %q, want the Lyon booking page", urls[0])
	}
	if !strings.Contains(urls[1], "google.com/maps") {
		t.Errorf("second opened link = %q, want a map link", urls[1])
	}
}

func TestGeolocateForVaccinationSuccessListsFacilitiesAndSpecialist(t *testing.T) {
	orch, sm, msg, _ := newTestOrchestrator(t, geoloc.StaticProvider{Pos: models.Position{Latitude: 45.76, Longitude: 4.83}})
	setData(t, sm, models.DataKeySymptoms, "toux et fièvre")
	setData(t, sm, models.DataKeyTurn, "5")
	if err := sm.SetCurrentState(context.Background(), testParticipant, models.FlowTypeIntake, models.StateEnsureLocationGeoConsent); err != nil {
		t.Fatalf("SetCurrentState failed: %v", err)
	}

	if err := orch.GeolocateForVaccination(context.Background(), testParticipant, 5); err != nil {
		t.Fatalf("GeolocateForVaccination failed: %v", err)
	}
	waitForState(t, sm, models.StateEnd)

	joined := strings.Join(msg.messages(), "\n")
	if !strings.Contains(joined, msgPositionFound) {
		t.Errorf("expected position confirmation in %q", joined)
	}
	if !strings.Contains(joined, "Pharmacie de la Gare") {
		t.Errorf("expected facility list in %q", joined)
	}
	if !strings.Contains(joined, "médecin généraliste") {
		t.Errorf("expected specialist follow-up in %q", joined)
	}
}

func TestGeolocateDeniedFallsBackToCity(t *testing.T) {
	orch, sm, msg, _ := newTestOrchestrator(t, geoloc.DeniedProvider{})
	setData(t, sm, models.DataKeyTurn, "3")
	if err := sm.SetCurrentState(context.Background(), testParticipant, models.FlowTypeIntake, models.StateEnsureLocationGeoConsent); err != nil {
		t.Fatalf("SetCurrentState failed: %v", err)
	}

	if err := orch.GeolocateForVaccination(context.Background(), testParticipant, 3); err != nil {
		t.Fatalf("GeolocateForVaccination failed: %v", err)
	}
	waitForState(t, sm, models.StateEnsureLocationAwaitCity)

	sent := msg.messages()
	if sent[len(sent)-1] != msgPositionDenied {
		t.Errorf("last message = %q, want %q", sent[len(sent)-1], msgPositionDenied)
	}
}

func TestStaleGeolocationResultIsDropped(t *testing.T) {
	orch, sm, msg, _ := newTestOrchestrator(t, geoloc.StaticProvider{Pos: models.Position{Latitude: 45.76, Longitude: 4.83}})
	// The session has already moved to turn 5; a completion issued at turn 3
	// must not touch it.
	setData(t, sm, models.DataKeyTurn, "5")
	if err := sm.SetCurrentState(context.Background(), testParticipant, models.FlowTypeIntake, models.StateEnsureLocationGeoConsent); err != nil {
		t.Fatalf("SetCurrentState failed: %v", err)
	}

	if err := orch.GeolocateForVaccination(context.Background(), testParticipant, 3); err != nil {
		t.Fatalf("GeolocateForVaccination failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	sent := msg.messages()
	if len(sent) != 1 || sent[0] != msgSearchingPos {
		t.Errorf("expected only the searching message, got %v", sent)
	}
	state, err := sm.GetCurrentState(context.Background(), testParticipant, models.FlowTypeIntake)
	if err != nil {
		t.Fatalf("GetCurrentState failed: %v", err)
	}
	if state != models.StateEnsureLocationGeoConsent {
		t.Errorf("state = %s, want unchanged consent step", state)
	}
	lat, _ := sm.GetStateData(context.Background(), testParticipant, models.FlowTypeIntake, models.DataKeyLatitude)
	if lat != "" {
		t.Errorf("stale result stored a position: %q", lat)
	}
}

// End-to-end conversation through the real flow and orchestrator: declined
// geolocation, city fallback, facility list, specialist links.
func TestConversationWithCityFallback(t *testing.T) {
	orch, sm, msg, _ := newTestOrchestrator(t, geoloc.DeniedProvider{})
	f := flow.NewIntakeFlow(flow.Dependencies{StateManager: sm, Messaging: msg, Orchestrator: orch})
	ctx := context.Background()

	if err := f.Start(ctx, testParticipant); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, line := range []string{
		"j'ai 34 ans",
		"oui",
		"toux et fièvre",
		"3 jours",
		"non",
		"non",
		"Lyon",
		"oui",
	} {
		if err := f.ProcessResponse(ctx, testParticipant, line); err != nil {
			t.Fatalf("ProcessResponse(%q) failed: %v", line, err)
		}
	}

	state, err := sm.GetCurrentState(ctx, testParticipant, models.FlowTypeIntake)
	if err != nil {
		t.Fatalf("GetCurrentState failed: %v", err)
	}
	if state != models.StateEnd {
		t.Fatalf("state = %s, want %s", state, models.StateEnd)
	}
	joined := strings.Join(msg.messages(), "\n")
	if !strings.Contains(joined, "Voici des pharmacies à Lyon") {
		t.Errorf("expected Lyon facility list in transcript:\n%s", joined)
	}
	if !strings.Contains(joined, "doctolib.fr/médecin-généraliste/Lyon") {
		t.Errorf("expected GP booking link in transcript:\n%s", joined)
	}
}
