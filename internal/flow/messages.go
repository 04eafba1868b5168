package flow

// User-facing prompt and reply texts for the intake dialogue.
const (
	MsgAskAge          = "Quel âge avez-vous ?"
	MsgAgeAckFmt       = "D'accord, vous avez %d ans. Avez-vous des symptômes ? (oui/non)"
	MsgAgeRetry        = "Je n’ai pas bien compris. Quel âge avez-vous ?"
	MsgSymptomsConfirm = "Pouvons-nous dire que vous avez des symptômes ? (oui/non)"
	MsgAskSymptoms     = "Quels sont vos symptômes ?"
	MsgNoSymptoms      = "Très bien 👍 Restez attentif à votre état et hydratez-vous. Si des symptômes apparaissent, consultez un professionnel de santé."
	MsgAskDuration     = "Depuis quand ? (ex : 3 jours / 1 semaine)"
	MsgDurationRetry   = "Petite précision : depuis combien de temps exactement ? (ex : 2 jours / 1 semaine)"
	MsgAskVaccinated   = "Êtes-vous vacciné contre la grippe cette année ? (oui/non)"
	MsgVaccinatedRetry = "Je n’ai pas saisi. Êtes-vous vacciné contre la grippe cette année ? (oui/non)"
	MsgVaccinatedGood  = "Génial! Rester à jour améliore votre protection."
	MsgVaccinationRisk = "Être non vacciné augmente le risque de formes sévères et la transmission à votre entourage. La vaccination reste recommandée, surtout en cas de facteurs de risque."

	MsgGeoConsentVaccination = "Souhaitez-vous que j’utilise votre localisation pour chercher un centre de vaccination près de chez vous ? (oui/non)"
	MsgAskCityVaccination    = "Très bien. Donnez-moi votre ville pour chercher près de chez vous :"
	MsgOfferCenter           = "Souhaitez-vous un centre de vaccination (pharmacie) près de chez vous ? (oui/non)"
	MsgOfferCenterRetry      = "Souhaitez-vous un centre de vaccination près de chez vous ? (oui/non)"

	MsgSpecialistConsent      = "Souhaitez-vous partager votre localisation ou me donner votre ville pour vous proposez des spécialistes plus proches de votre secteur ? (oui/non)"
	MsgSpecialistConsentRetry = "Souhaitez-vous partager votre localisation ou me donner votre ville pour vous proposez un medecin le plus proche de votre secteur ? (oui/non)"
	MsgAskCitySpecialist      = "Très bien. Indiquez simplement votre ville :"

	MsgStillAvailable = "Je reste disponible si besoin 😊"
	MsgEndGreeting    = "Bonjour 👋 Je reste disponible si besoin."
	MsgEndThanks      = "Avec plaisir 😊 Prenez soin de vous."
)
