package governance

// Smart codes stamped on rows the platform writes on its own behalf
const (
	SystemOrganization   = "HERA.PLATFORM.ORG.ENT.v1"
	SystemUser           = "HERA.PLATFORM.USER.ENT.v1"
	SystemRole           = "HERA.PLATFORM.ROLE.ENT.v1"
	SystemMemberOf       = "HERA.PLATFORM.REL.MEMBER_OF.v1"
	SystemHasRole        = "HERA.PLATFORM.REL.HAS_ROLE.v1"
	SystemNormalizedName = "HERA.PLATFORM.FIELD.NORMALIZED_NAME.v1"
)

// SystemEntries returns the catalog entries for the platform's own codes
func SystemEntries() []Entry {
	return []Entry{
		{Code: SystemOrganization, Kind: KindGeneral, Description: "organization anchor entity"},
		{Code: SystemUser, Kind: KindGeneral, Description: "platform user"},
		{Code: SystemRole, Kind: KindGeneral, Description: "role entity"},
		{Code: SystemMemberOf, Kind: KindGeneral, Description: "user membership in an organization"},
		{Code: SystemHasRole, Kind: KindGeneral, Description: "role grant"},
		{Code: SystemNormalizedName, Kind: KindGeneral, Description: "resolver normalized name"},
	}
}
