package domain

// Role identifies the caller's function in the platform. Values outside the
// known set parse to RoleUnknown and only ever receive the baseline channel.
type Role string

const (
	RoleAdminSGG              Role = "admin_sgg"
	RoleDirecteurSGG          Role = "directeur_sgg"
	RoleSGPR                  Role = "sgpr"
	RoleSGMinistere           Role = "sg_ministere"
	RolePremierMinistre       Role = "premier_ministre"
	RoleMinistre              Role = "ministre"
	RoleDGJO                  Role = "dgjo"
	RoleCitoyen               Role = "citoyen"
	RoleAssemblee             Role = "assemblee"
	RoleSenat                 Role = "senat"
	RoleConseilEtat           Role = "conseil_etat"
	RoleCourConstitutionnelle Role = "cour_constitutionnelle"

	RoleUnknown Role = "unknown"
)

// roleChannels is the channel authorization table. It is never mutated.
var roleChannels = map[Role][]Channel{
	RoleAdminSGG:              {ChannelNotifications, ChannelDataChanged, ChannelReportingUpdate, ChannelAdminBroadcast, ChannelSystemMetrics},
	RoleDirecteurSGG:          {ChannelNotifications, ChannelDataChanged, ChannelReportingUpdate, ChannelAdminBroadcast},
	RoleSGPR:                  {ChannelNotifications, ChannelDataChanged, ChannelReportingUpdate},
	RoleSGMinistere:           {ChannelNotifications, ChannelReportingUpdate},
	RolePremierMinistre:       {ChannelNotifications, ChannelDataChanged},
	RoleMinistre:              {ChannelNotifications, ChannelReportingUpdate},
	RoleDGJO:                  {ChannelNotifications},
	RoleCitoyen:               {ChannelNotifications},
	RoleAssemblee:             {ChannelNotifications},
	RoleSenat:                 {ChannelNotifications},
	RoleConseilEtat:           {ChannelNotifications},
	RoleCourConstitutionnelle: {ChannelNotifications},
}

// ParseRole maps a token claim onto the closed role set.
func ParseRole(s string) Role {
	r := Role(s)
	if _, ok := roleChannels[r]; ok {
		return r
	}
	return RoleUnknown
}

// Known reports whether r is part of the authorization table.
func (r Role) Known() bool {
	_, ok := roleChannels[r]
	return ok
}

// IsAdmin reports whether r may issue client-initiated broadcasts.
func (r Role) IsAdmin() bool {
	return r == RoleAdminSGG
}

// AuthorizedChannels returns the channels r may receive. Unknown roles get
// the baseline channel only.
func AuthorizedChannels(r Role) []Channel {
	channels, ok := roleChannels[r]
	if !ok {
		return []Channel{BaselineChannel}
	}
	out := make([]Channel, len(channels))
	copy(out, channels)
	return out
}

// CanReceive reports whether r is authorized for c.
func CanReceive(r Role, c Channel) bool {
	if c == BaselineChannel {
		return true
	}
	for _, allowed := range roleChannels[r] {
		if allowed == c {
			return true
		}
	}
	return false
}
