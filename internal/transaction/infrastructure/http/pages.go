package http

import (
	"html/template"
	"net/http"
)

type page struct {
	Title   string
	Heading string
	Message string
}

var (
	pageSuccess = page{
		Title:   "Payment successful",
		Heading: "Payment successful",
		Message: "Your payment has been confirmed. You can close this window.",
	}
	pageFailed = page{
		Title:   "Payment failed",
		Heading: "Payment failed",
		Message: "Your payment could not be completed. No charge was made.",
	}
	pageCancelled = page{
		Title:   "Payment cancelled",
		Heading: "Payment cancelled",
		Message: "You cancelled the payment. You can restart checkout at any time.",
	}
	pageError = page{
		Title:   "Something went wrong",
		Heading: "Something went wrong",
		Message: "We could not process this payment notification. If you were charged, the payment will be reconciled automatically.",
	}
)

var outcomeTemplate = template.Must(template.New("outcome").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Page.Title}}</title></head>
<body>
  <h1>{{.Page.Heading}}</h1>
  <p>{{.Page.Message}}</p>
  {{if .Reference}}<p>Reference: <code>{{.Reference}}</code></p>{{end}}
</body>
</html>
`))

func (h *CallbackHandler) render(w http.ResponseWriter, p page, reference string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Page      page
		Reference string
	}{Page: p, Reference: reference}
	if err := outcomeTemplate.Execute(w, data); err != nil {
		h.log.Error("outcome page render failed", "err", err)
	}
}
