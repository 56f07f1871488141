package internal

import "expvar"

var (
	requestsTotal = expvar.NewMap("branchhooks_requests_total")
	parseErrors   = expvar.NewMap("branchhooks_parse_errors_total")
	publishErrors = expvar.NewMap("branchhooks_publish_errors_total")
	actionsTotal  = expvar.NewMap("branchhooks_actions_total")
)

func IncRequest(scm string) {
	requestsTotal.Add(scm, 1)
}

func IncParseError(kind string) {
	parseErrors.Add(kind, 1)
}

func IncPublishError(driver string) {
	publishErrors.Add(driver, 1)
}

func IncAction(class string) {
	actionsTotal.Add(class, 1)
}
