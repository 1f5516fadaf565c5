// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package marketplace

import (
	"context"
	"net/http"

	"github.com/taibuivan/coursehub/internal/purchase"
)

var _ purchase.Backend = (*Client)(nil)

// # Purchase Backend

// CreateOrder implements [purchase.Backend].
func (client *Client) CreateOrder(ctx context.Context, accessToken, courseID string) (*purchase.Order, error) {
	var response orderResponse
	err := client.call(ctx, "create_order", http.MethodPost, "/razorpay-order", accessToken,
		orderRequest{CourseID: courseID}, &response)
	if err != nil {
		return nil, err
	}

	return &purchase.Order{
		OrderID:    response.OrderID,
		Amount:     response.Amount,
		Currency:   response.Currency,
		Key:        response.Key,
		CourseName: response.CourseName,
	}, nil
}

// VerifyPayment implements [purchase.Backend].
//
// A 400 answer carries the rejection reason and is returned as a validation
// error, so the coordinator shows the message verbatim. The client timeout
// does not apply; ctx carries the verification deadline.
func (client *Client) VerifyPayment(ctx context.Context, accessToken string, input purchase.VerifyInput) (*purchase.Verification, error) {
	var response verifyResponse
	err := client.call(ctx, operationVerifyPayment, http.MethodPost, "/verify-payment", accessToken, verifyRequest{
		PaymentID: input.Reference.PaymentID,
		OrderID:   input.Reference.OrderID,
		Signature: input.Reference.Signature,
		CourseID:  input.CourseID,
		UserID:    input.UserID,
	}, &response)
	if err != nil {
		return nil, err
	}

	return &purchase.Verification{
		Success:         response.Success,
		AlreadyEnrolled: response.AlreadyEnrolled,
		Message:         response.Message,
	}, nil
}
