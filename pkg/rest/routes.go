package rest

import (
	"github.com/artistmail/webmail/pkg/server/web"
	"github.com/gorilla/mux"
)

// SetupRoutes populates the routes for the REST interface
func SetupRoutes(r *mux.Router) {
	// API v1
	r.Path("/v1/session").Handler(
		web.Handler(SessionGetV1)).Name("SessionGetV1").Methods("GET")
	r.Path("/v1/session").Handler(
		web.Handler(SessionLogoutV1)).Name("SessionLogoutV1").Methods("DELETE")
	r.Path("/v1/session/login").Handler(
		web.Handler(SessionLoginV1)).Name("SessionLoginV1").Methods("POST")
	r.Path("/v1/session/register").Handler(
		web.Handler(SessionRegisterV1)).Name("SessionRegisterV1").Methods("POST")
	r.Path("/v1/mailbox/{name}").Handler(
		web.Handler(MailboxListV1)).Name("MailboxListV1").Methods("GET")
	r.Path("/v1/mailbox/{name}/mbox").Handler(
		web.Handler(MailboxMboxV1)).Name("MailboxMboxV1").Methods("GET")
	r.Path("/v1/message/{id}").Handler(
		web.Handler(MessageShowV1)).Name("MessageShowV1").Methods("GET")
	r.Path("/v1/message/{id}/star").Handler(
		web.Handler(MessageStarV1)).Name("MessageStarV1").Methods("PUT")
	r.Path("/v1/compose").Handler(
		web.Handler(ComposeSendV1)).Name("ComposeSendV1").Methods("POST")
	r.Path("/v1/admin/users").Handler(
		web.Handler(AdminUsersV1)).Name("AdminUsersV1").Methods("GET")
	r.Path("/v1/admin/stats").Handler(
		web.Handler(AdminStatsV1)).Name("AdminStatsV1").Methods("GET")
	r.Path("/v1/admin/users/{id}/active").Handler(
		web.Handler(AdminToggleActiveV1)).Name("AdminToggleActiveV1").Methods("PUT")
	r.Path("/v1/admin/users/{id}/storage").Handler(
		web.Handler(AdminStorageV1)).Name("AdminStorageV1").Methods("PUT")
	r.Path("/v1/site/visitors").Handler(
		web.Handler(SiteVisitorsV1)).Name("SiteVisitorsV1").Methods("GET")
	r.Path("/v1/site/videos").Handler(
		web.Handler(SiteVideosV1)).Name("SiteVideosV1").Methods("GET")
	r.Path("/v1/site/contact").Handler(
		web.Handler(SiteContactV1)).Name("SiteContactV1").Methods("POST")
	r.Path("/v1/status").Handler(
		web.Handler(StatusV1)).Name("StatusV1").Methods("GET")
	r.Path("/v1/monitor").Handler(
		web.Handler(MonitorV1)).Name("MonitorV1").Methods("GET")
}
