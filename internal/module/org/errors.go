package org

import "errors"

var (
	ErrOrgNotFound    = errors.New("organization not found")
	ErrSlugTaken      = errors.New("organization slug already taken")
	ErrMemberExists   = errors.New("user is already a member")
	ErrMemberNotFound = errors.New("member not found")
)
