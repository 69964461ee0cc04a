package authz

const (
	RoleAdmin     = "vault-admin"
	RoleOfficer   = "vault-officer"
	RoleViewer    = "vault-viewer"
	RoleAnonymous = "anonymous"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
	ActionAdmin = "admin"
)

const DomainGlobal = "global"

const (
	ObjectDocFileFiles     = "docfile.files"
	ObjectDocFileDocuments = "docfile.documents"
	ObjectDocFileRules     = "docfile.rules"
)
