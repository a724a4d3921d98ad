package service

import (
	"context"
	"strings"
	"testing"

	"keymarket/internal/config"
	"keymarket/internal/model"
	"keymarket/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestService(t *testing.T) (*PaymentRequestService, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	cfg := &config.Config{}
	cfg.Kafka.Topic.PaymentResult = "keymarket.payment.result"
	return NewPaymentRequestService(db, nil, cfg), mock
}

func TestSubmitRejectsNonPositiveAmount(t *testing.T) {
	svc, mock := newRequestService(t)

	_, err := svc.Submit(context.Background(), 1, 0, "alipay")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Submit(context.Background(), 1, -100, "alipay")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitUnknownUser(t *testing.T) {
	svc, mock := newRequestService(t)

	mock.ExpectQuery("SELECT (.+) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Submit(context.Background(), 999, 500, "alipay")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	svc, mock := newRequestService(t)

	mock.ExpectQuery("SELECT (.+) FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(1, "alice"))
	mock.ExpectExec("INSERT INTO `payment_requests`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	request, err := svc.Submit(context.Background(), 1, 500, "alipay")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(request.RequestNo, "REQ"))
	assert.Equal(t, model.RequestStatusPending, request.Status)
	assert.Equal(t, int64(500), request.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveAlreadyProcessed(t *testing.T) {
	svc, mock := newRequestService(t)

	// 终态请求在加锁之前就被拦下
	mock.ExpectQuery("SELECT (.+) FROM `payment_requests`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_no", "user_id", "amount", "status"}).
			AddRow(1, "REQ001", 10, 500, model.RequestStatusApproved))

	_, err := svc.Approve(context.Background(), 1, "")
	assert.ErrorIs(t, err, repository.ErrRequestProcessed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveMissingRequest(t *testing.T) {
	svc, mock := newRequestService(t)

	mock.ExpectQuery("SELECT (.+) FROM `payment_requests`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Approve(context.Background(), 404, "")
	assert.ErrorIs(t, err, repository.ErrRequestProcessed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectDoesNotTouchBalance(t *testing.T) {
	svc, mock := newRequestService(t)

	mock.ExpectQuery("SELECT (.+) FROM `payment_requests`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_no", "user_id", "amount", "status"}).
			AddRow(1, "REQ001", 10, 500, model.RequestStatusPending))

	// 驳回只翻转状态和写通知，users 表和流水表零写入
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `payment_requests` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `outbox_message`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	request, err := svc.Reject(context.Background(), 1, "凭证无效")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusRejected, request.Status)
	assert.Equal(t, "凭证无效", request.AdminNotes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectAlreadyProcessed(t *testing.T) {
	svc, mock := newRequestService(t)

	mock.ExpectQuery("SELECT (.+) FROM `payment_requests`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_no", "user_id", "amount", "status"}).
			AddRow(1, "REQ001", 10, 500, model.RequestStatusRejected))

	_, err := svc.Reject(context.Background(), 1, "")
	assert.ErrorIs(t, err, repository.ErrRequestProcessed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
