package audit

import (
	"sort"

	"github.com/clinica/clinica/internal/platform/apperr"
)

// Action codes. Outcome variants are derived with ActionFor.
const (
	ActionLogin                  = "login"
	ActionLoginFailed            = "login_failed"
	ActionLogout                 = "logout"
	ActionMe                     = "me"
	ActionUnauthenticatedAccess  = "unauthenticated_access"
	ActionListAppointments       = "list_appointments"
	ActionViewAppointment        = "view_appointment"
	ActionCreateAppointment      = "create_appointment"
	ActionUpdateAppointment      = "update_appointment"
	ActionCancelAppointment      = "cancel_appointment"
	ActionCancelAppointmentNoop  = "cancel_appointment_noop"
	ActionDeleteAppointment      = "delete_appointment"
	ActionListDocuments          = "list_documents"
	ActionListMyDocuments        = "list_my_documents"
	ActionViewDocument           = "view_document"
	ActionUploadDocument         = "upload_document"
	ActionDownloadDocument       = "download_document"
	ActionDownloadDocumentNoFile = "download_document_file_missing"
	ActionDeleteDocument         = "delete_document"
	ActionListHistories          = "list_histories"
	ActionViewHistory            = "view_history"
	ActionCreateHistory          = "create_history"
	ActionUpdateHistory          = "update_history"
	ActionDeleteHistory          = "delete_history"
	ActionListPatients           = "list_patients"
	ActionViewPatient            = "view_patient"
	ActionCreatePatient          = "create_patient"
	ActionUpdatePatient          = "update_patient"
	ActionDeletePatient          = "delete_patient"
	ActionListSpecialists        = "list_specialists"
	ActionViewSpecialist         = "view_specialist"
	ActionCreateSpecialist       = "create_specialist"
	ActionUpdateSpecialist       = "update_specialist"
	ActionDeleteSpecialist       = "delete_specialist"
	ActionListUsers              = "list_users"
	ActionViewUser               = "view_user"
	ActionCreateUser             = "create_user"
	ActionUpdateUser             = "update_user"
	ActionDeleteUser             = "delete_user"
	ActionListLogs               = "list_logs"
)

const (
	suffixNotFound     = "_not_found"
	suffixUnauthorized = "_unauthorized"
	suffixInvalid      = "_invalid"
	suffixError        = "_error"
)

// ActionFor derives the recorded action code from the base action and the
// outcome of the attempt.
func ActionFor(base string, err error) string {
	if err == nil {
		return base
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return base + suffixNotFound
	case apperr.KindForbidden:
		return base + suffixUnauthorized
	case apperr.KindValidation, apperr.KindBadRequest:
		return base + suffixInvalid
	default:
		return base + suffixError
	}
}

var baseActions = []string{
	ActionListAppointments, ActionViewAppointment, ActionCreateAppointment,
	ActionUpdateAppointment, ActionCancelAppointment, ActionDeleteAppointment,
	ActionListDocuments, ActionListMyDocuments, ActionViewDocument,
	ActionUploadDocument, ActionDownloadDocument, ActionDeleteDocument,
	ActionListHistories, ActionViewHistory, ActionCreateHistory, ActionUpdateHistory, ActionDeleteHistory,
	ActionListPatients, ActionViewPatient, ActionCreatePatient, ActionUpdatePatient, ActionDeletePatient,
	ActionListSpecialists, ActionViewSpecialist, ActionCreateSpecialist, ActionUpdateSpecialist, ActionDeleteSpecialist,
	ActionListUsers, ActionViewUser, ActionCreateUser, ActionUpdateUser, ActionDeleteUser,
	ActionListLogs, ActionLogout, ActionMe,
}

var knownActions = buildKnownActions()

func buildKnownActions() map[string]bool {
	m := map[string]bool{
		ActionLogin:                  true,
		ActionLoginFailed:            true,
		ActionUnauthenticatedAccess:  true,
		ActionCancelAppointmentNoop:  true,
		ActionDownloadDocumentNoFile: true,
	}
	for _, base := range baseActions {
		m[base] = true
		for _, s := range []string{suffixNotFound, suffixUnauthorized, suffixInvalid, suffixError} {
			m[base+s] = true
		}
	}
	return m
}

// IsKnownAction reports whether code can appear in the log. The log filter
// endpoint rejects anything else.
func IsKnownAction(code string) bool {
	return knownActions[code]
}

// KnownActions returns every action code in sorted order.
func KnownActions() []string {
	out := make([]string, 0, len(knownActions))
	for a := range knownActions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
