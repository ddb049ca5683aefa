package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyGateway_Authenticate(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		repo    *fakeUsersRepo
		want    Identity
		wantErr error
	}{
		{"missing key", "", &fakeUsersRepo{}, Identity{}, common.ErrorUnauthorized},
		{"unknown key", "nope", &fakeUsersRepo{getErr: common.ErrorNotFound}, Identity{}, common.ErrorForbidden},
		{"store failure", "k", &fakeUsersRepo{getErr: errBoom{}}, Identity{}, common.ErrorInternal},
		{"valid key", "k", &fakeUsersRepo{getOut: &models.User{ID: 5, Email: "e@f"}}, Identity{UserID: 5, Email: "e@f"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewAPIKeyGateway(nil, &fakeRepoManager{u: tt.repo})

			got, err := g.Authenticate(context.Background(), tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
