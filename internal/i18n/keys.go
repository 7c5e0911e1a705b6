// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"
	KeyWarning = "warning"
	KeyInfo    = "info"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserNotFound       = "auth.user_not_found"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthEmailNotVerified   = "auth.email_not_verified"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyAuthPasswordReset      = "auth.password_reset"

	// User Management
	KeyUserProfileUpdated      = "user.profile_updated"
	KeyUserNotFound            = "user.not_found"
	KeyUserSuspended           = "user.suspended"
	KeyUserVerified            = "user.verified"
	KeyUserVerificationPending = "user.verification_pending"

	// Tickets
	KeyTicketCreated     = "ticket.created"
	KeyTicketUpdated     = "ticket.updated"
	KeyTicketDeleted     = "ticket.deleted"
	KeyTicketNotFound    = "ticket.not_found"
	KeyTicketUnavailable = "ticket.unavailable"

	// Transactions
	KeyTransactionNotFound     = "transaction.not_found"
	KeyTransactionReserved     = "transaction.reserved"
	KeyTransactionConfirmed    = "transaction.confirmed"
	KeyTransactionRejected     = "transaction.rejected"
	KeyTransactionExpired      = "transaction.expired"
	KeyTransactionInvalidState = "transaction.invalid_state"

	// Payments
	KeyPaymentSuccess       = "payment.success"
	KeyPaymentFailed        = "payment.failed"
	KeyPaymentPending       = "payment.pending"
	KeyPaymentRefunded      = "payment.refunded"
	KeyPaymentUnavailable   = "payment.unavailable"
	KeyPaymentInvalidAmount = "payment.invalid_amount"

	// Disputes
	KeyDisputeOpened      = "dispute.opened"
	KeyDisputeNotFound    = "dispute.not_found"
	KeyDisputeResolved    = "dispute.resolved"
	KeyDisputeAlreadyOpen = "dispute.already_open"
	KeyDisputeClosed      = "dispute.closed"

	// Wallet
	KeyWalletNotFound            = "wallet.not_found"
	KeyWalletInsufficientBalance = "wallet.insufficient_balance"
	KeyWithdrawalRequested       = "withdrawal.requested"
	KeyWithdrawalNotFound        = "withdrawal.not_found"
	KeyWithdrawalBelowMinimum    = "withdrawal.below_minimum"
	KeyWithdrawalNotVerified     = "withdrawal.not_verified"
	KeyWithdrawalInProgress      = "withdrawal.in_progress"

	// Admin
	KeyAdminActionSuccess   = "admin.action_success"
	KeyAdminAccessDenied    = "admin.access_denied"
	KeyAdminUserSuspended   = "admin.user_suspended"
	KeyAdminUserUnsuspended = "admin.user_unsuspended"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationTooShort = "validation.too_short"
	KeyValidationTooLong  = "validation.too_long"
	KeyValidationEmail    = "validation.invalid_email"
	KeyValidationPassword = "validation.invalid_password"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
	KeyFileInvalidType   = "file.invalid_type"
	KeyFileTooLarge      = "file.too_large"

	// Verification
	KeyVerificationSuccess = "verification.success"
	KeyVerificationFailed  = "verification.failed"
	KeyVerificationInvalid = "verification.invalid_code"
)
