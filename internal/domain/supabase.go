package domain

import "github.com/supabase-community/supabase-go"

type SupabaseClient interface {
	Initialize() error
	IsConfigured() bool

	DB() *supabase.Client
}
