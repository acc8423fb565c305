package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAccountLockout_Covers(t *testing.T) {
	lockout := AccountLockout{
		LockedFeatures: FeatureList("CREATE_JOB", "WITHDRAW_FUNDS"),
		ActiveFeatures: FeatureList("SEND_MESSAGE"),
	}

	require.True(t, lockout.Covers("CREATE_JOB"))
	require.True(t, lockout.Covers("WITHDRAW_FUNDS"))
	require.False(t, lockout.Covers("SEND_MESSAGE"))
	require.False(t, lockout.Covers("GENERAL_ACCESS"))
}

func TestAccountLockout_ExemptionWinsOverLocked(t *testing.T) {
	lockout := AccountLockout{
		LockedFeatures: FeatureList("CREATE_JOB"),
		ActiveFeatures: FeatureList("CREATE_JOB"),
	}

	require.False(t, lockout.Covers("CREATE_JOB"))
}

func TestAccountLockout_MalformedFeatureSets(t *testing.T) {
	lockout := AccountLockout{
		LockedFeatures: datatypes.JSON(`{"bogus":`),
		ActiveFeatures: nil,
	}

	require.Empty(t, lockout.LockedFeatureCodes())
	require.Empty(t, lockout.ActiveFeatureCodes())
	require.False(t, lockout.Covers("CREATE_JOB"))
}

func TestFeatureList(t *testing.T) {
	require.JSONEq(t, `["A","B"]`, string(FeatureList("A", "B")))
	require.JSONEq(t, `[]`, string(FeatureList()))
}
