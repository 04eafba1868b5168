package specialist

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		symptoms string
		want     string
	}{
		{"j'ai mal aux dents", Dentiste},
		{"une dent cassée", Dentiste},
		{"problème de peau", Dermatologue},
		{"poussée d'acné", Dermatologue},
		{"les yeux qui piquent", Ophtalmologue},
		{"baisse de vue", Ophtalmologue},
		{"fièvre", MedecinGeneraliste},
		{"toux et gorge irritée", MedecinGeneraliste},
		{"fatigue générale", MedecinGeneraliste},
		{"", MedecinGeneraliste},
		// Priority order: dental keywords win over the fever family.
		{"fièvre et mal de dents", Dentiste},
	}
	for _, tc := range cases {
		if got := Resolve(tc.symptoms); got != tc.want {
			t.Errorf("Resolve(%q) = %q, want %q", tc.symptoms, got, tc.want)
		}
	}
}
