package policy

type key struct {
	res   Resource
	act   Action
	scope Scope
}

type predicate func(actorID int64, f Facts) bool

func isAppointmentParty(actorID int64, f Facts) bool {
	return actorID == f.PatientActorID || actorID == f.SpecialistActorID
}

func isOwner(actorID int64, f Facts) bool {
	return f.OwnerID != 0 && actorID == f.OwnerID
}

func specialistLinked(_ int64, f Facts) bool { return f.SpecialistLinked }

func specialistQualified(_ int64, f Facts) bool { return f.SpecialistQualified }

// ownership qualifies the non-"all" grants of the role matrix.
var ownership = map[key]predicate{
	{Appointment, Cancel, ScopeLinked}: isAppointmentParty,
	{Document, Read, ScopeLinked}:      specialistLinked,
	{Document, Read, ScopeOwned}:       isOwner,
	{Document, Delete, ScopeOwned}:     isOwner,
	{Document, Download, ScopeOwned}:   isOwner,
	{Document, Download, ScopeLinked}:  specialistQualified,
	{History, Read, ScopeLinked}:       isAppointmentParty,
}

func p(sub string, res Resource, act Action, scope Scope) []string {
	return []string{sub, string(res), string(act), string(scope)}
}

func rules(opts Options) [][]string {
	historyRead := ScopeAll
	if opts.StrictHistoryRead {
		historyRead = ScopeLinked
	}

	rs := [][]string{
		p(roleAuthenticated, Appointment, List, ScopeAll),
		p(roleAuthenticated, Appointment, Read, ScopeAll),
		p(roleAuthenticated, Appointment, Create, ScopeAll),
		p(roleAuthenticated, Appointment, Update, ScopeAll),
		p(roleAuthenticated, Appointment, Cancel, ScopeLinked),
		p(RoleAdministrator, Appointment, Delete, ScopeAll),

		p(RoleAdministrator, Document, List, ScopeAll),
		p(RoleAdministrator, Document, Read, ScopeAll),
		p(RoleSpecialist, Document, List, ScopeLinked),
		p(RoleSpecialist, Document, Read, ScopeLinked),
		p(RolePatient, Document, List, ScopeOwned),
		p(RolePatient, Document, Read, ScopeOwned),
		p(RoleSpecialist, Document, ListMine, ScopeLinked),
		p(RolePatient, Document, ListMine, ScopeOwned),
		p(roleAuthenticated, Document, Upload, ScopeAll),
		p(roleAuthenticated, Document, Delete, ScopeOwned),
		p(RoleAdministrator, Document, Delete, ScopeAll),
		p(roleAuthenticated, Document, Download, ScopeOwned),
		p(RoleSpecialist, Document, Download, ScopeLinked),

		p(RoleSpecialist, History, Create, ScopeAll),
		p(RoleSpecialist, History, Update, ScopeAll),
		p(RoleAdministrator, History, Delete, ScopeAll),
		p(RoleAdministrator, History, List, ScopeAll),
		p(RoleAdministrator, History, Read, ScopeAll),
		p(RoleSpecialist, History, Read, historyRead),
		p(RolePatient, History, Read, historyRead),
	}
	for _, res := range []Resource{Patient, Specialist, User, Log} {
		rs = append(rs, p(RoleAdministrator, res, "*", ScopeAll))
	}
	return rs
}
