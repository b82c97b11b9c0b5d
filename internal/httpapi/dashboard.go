package httpapi

import (
	"embed"
	"html/template"
	"strings"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

const dashboardLogCount = 10

var dashboardTmpl = template.Must(template.New("dashboard.html").
	Funcs(template.FuncMap{"logClass": logClass}).
	ParseFS(templateFS, "templates/dashboard.html"))

// dashboardData is nil-able on purpose: /template renders the shell and
// lets the page fill itself in from the API.
type dashboardData struct {
	Status *types.SystemStatus
	Logs   []types.AccessEvent
}

func logClass(result string) string {
	switch {
	case strings.Contains(result, "granted"):
		return "granted"
	case strings.Contains(result, "denied"):
		return "denied"
	case strings.Contains(result, "Master"), strings.Contains(result, "Registration mode"):
		return "master"
	case strings.Contains(result, "Registered"):
		return "registered"
	}
	return ""
}
