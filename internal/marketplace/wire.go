// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package marketplace

import (
	"github.com/taibuivan/coursehub/internal/platform/sec"
	"github.com/taibuivan/coursehub/internal/session"
)

// # Wire Types
//
// The marketplace speaks camelCase JSON. These types stay private to the
// package; callers only see session and purchase types.

type wireAvatar struct {
	URL string `json:"url"`
}

type wireUser struct {
	ID                 string      `json:"_id"`
	Name               string      `json:"name"`
	Email              string      `json:"email"`
	Avatar             *wireAvatar `json:"avatar,omitempty"`
	Role               string      `json:"role"`
	IsVerified         bool        `json:"isVerified"`
	PurchasedCourseIDs []string    `json:"purchasedCourseIds"`
}

func (user *wireUser) profile() *session.UserProfile {
	if user == nil {
		return nil
	}

	role := sec.UserRole(user.Role)
	if !role.Valid() {
		role = sec.RoleUser
	}

	profile := &session.UserProfile{
		ID:                 user.ID,
		Name:               user.Name,
		Email:              user.Email,
		Role:               role,
		IsVerified:         user.IsVerified,
		PurchasedCourseIDs: append([]string(nil), user.PurchasedCourseIDs...),
	}
	if user.Avatar != nil {
		profile.AvatarURL = user.Avatar.URL
	}

	return profile
}

// authResponse is shared by /me, /login, /register, /activate-user and /social-auth.
type authResponse struct {
	AccessToken string    `json:"accessToken"`
	User        *wireUser `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type activateRequest struct {
	ActivationToken string `json:"activation_token"`
	ActivationCode  string `json:"activation_code"`
}

type socialRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type profileRequest struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

type orderRequest struct {
	CourseID string `json:"courseId"`
}

type orderResponse struct {
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Key        string `json:"key"`
	CourseName string `json:"courseName"`
}

type verifyRequest struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
	CourseID  string `json:"courseId"`
	UserID    string `json:"userId"`
}

type verifyResponse struct {
	Success         bool   `json:"success"`
	AlreadyEnrolled bool   `json:"alreadyEnrolled"`
	Message         string `json:"message"`
}
