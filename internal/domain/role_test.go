package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"admin_sgg", RoleAdminSGG},
		{"citoyen", RoleCitoyen},
		{"cour_constitutionnelle", RoleCourConstitutionnelle},
		{"", RoleUnknown},
		{"ADMIN_SGG", RoleUnknown},
		{"superuser", RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.in))
		})
	}
}

func TestAuthorizedChannels_UnknownRoleGetsBaselineOnly(t *testing.T) {
	assert.Equal(t, []Channel{BaselineChannel}, AuthorizedChannels(RoleUnknown))
	assert.Equal(t, []Channel{BaselineChannel}, AuthorizedChannels(Role("root")))
}

func TestAuthorizedChannels_AlwaysContainsBaseline(t *testing.T) {
	for role := range roleChannels {
		assert.Contains(t, AuthorizedChannels(role), BaselineChannel, "role %s", role)
	}
}

func TestAuthorizedChannels_ReturnsCopy(t *testing.T) {
	channels := AuthorizedChannels(RoleAdminSGG)
	channels[0] = "tampered"

	assert.Equal(t, ChannelNotifications, AuthorizedChannels(RoleAdminSGG)[0])
}

func TestCanReceive(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		channel Channel
		want    bool
	}{
		{"admin gets system metrics", RoleAdminSGG, ChannelSystemMetrics, true},
		{"directeur gets admin broadcast", RoleDirecteurSGG, ChannelAdminBroadcast, true},
		{"directeur denied system metrics", RoleDirecteurSGG, ChannelSystemMetrics, false},
		{"citoyen denied admin broadcast", RoleCitoyen, ChannelAdminBroadcast, false},
		{"citoyen gets baseline", RoleCitoyen, ChannelNotifications, true},
		{"unknown role gets baseline", RoleUnknown, ChannelNotifications, true},
		{"unknown role denied data changes", RoleUnknown, ChannelDataChanged, false},
		{"ministre gets reporting", RoleMinistre, ChannelReportingUpdate, true},
		{"premier ministre denied reporting", RolePremierMinistre, ChannelReportingUpdate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanReceive(tt.role, tt.channel))
		})
	}
}

func TestRole_IsAdmin(t *testing.T) {
	assert.True(t, RoleAdminSGG.IsAdmin())
	assert.False(t, RoleDirecteurSGG.IsAdmin())
	assert.False(t, RoleUnknown.IsAdmin())
}
