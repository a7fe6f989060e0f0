package mail

import (
	"fmt"

	"github.com/pocketbase/pocketbase/tools/template"
)

type ticketEmailData struct {
	FirstName string
	Name      string
	EventName string
	Organizer string
	Date      string
	Hours     string
	Venue     string
	Transport string
	Category  string
	Amount    string
	Contact   string
}

const ticketHTML = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333; background-color: #f8f8f8; border-radius: 10px;">
  <div style="text-align: center; margin-bottom: 20px;">
    <h1 style="color: #6200ea; margin-bottom: 10px;">Votre billet pour {{.Organizer}}</h1>
  </div>
  <div style="background-color: white; padding: 20px; border-radius: 8px; margin-bottom: 20px;">
    <p>Bonjour <strong>{{.FirstName}} {{.Name}}</strong>,</p>
    <p>Nous vous remercions pour votre achat. Votre billet est joint à ce message.</p>
    <div style="background-color: #f0f0f0; padding: 15px; border-left: 4px solid #6200ea; margin: 15px 0;">
      <p style="margin: 5px 0;"><strong>Catégorie:</strong> {{.Category}}</p>
      {{if .Amount}}<p style="margin: 5px 0;"><strong>Montant:</strong> {{.Amount}}</p>{{end}}
      <p style="margin: 5px 0;"><strong>Date:</strong> {{.Date}}</p>
      {{if .Hours}}<p style="margin: 5px 0;"><strong>Heure:</strong> {{.Hours}}</p>{{end}}
      <p style="margin: 5px 0;"><strong>Lieu:</strong> {{.Venue}}</p>
      {{if .Transport}}<p style="margin: 5px 0;"><strong>Transport:</strong> {{.Transport}}</p>{{end}}
    </div>
    <p>N'oubliez pas d'apporter une pièce d'identité. Votre billet sera scanné à l'entrée.</p>
    <p>À très bientôt !</p>
  </div>
  <div style="text-align: center; font-size: 12px; color: #666;">
    <p>L'équipe {{.Organizer}}</p>
    {{if .Contact}}<p>Pour toute question, contactez-nous à <a href="mailto:{{.Contact}}" style="color: #6200ea;">{{.Contact}}</a></p>{{end}}
  </div>
</div>`

var registry = template.NewRegistry()

func renderHTML(data ticketEmailData) (string, error) {
	return registry.LoadString(ticketHTML).Render(data)
}

func renderText(data ticketEmailData) string {
	return fmt.Sprintf("Bonjour %s %s,\n\nVoici votre billet pour l'événement %s.\n\nCatégorie: %s\nDate: %s\nLieu: %s\n\nMerci et à bientôt !\nL'équipe %s",
		data.FirstName, data.Name, data.Organizer, data.Category, data.Date, data.Venue, data.Organizer)
}
