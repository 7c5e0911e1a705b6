// internal/services/notification_service.go
package services

import (
	"fmt"
	"net/smtp"
	"net/url"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/config"
	"github.com/repasso/repasso-backend/internal/models"
)

// NotificationService delivers email and WhatsApp-link notifications.
// Dispatch is fire-and-forget through a buffered channel: a slow SMTP
// server or a full queue can never block or fail a state transition.
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
	queue  chan Notification
}

type Notification struct {
	UserID    uuid.UUID
	Type      string
	Title     string
	Message   string
	SendEmail bool
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	s := &NotificationService{
		db:     db,
		config: config,
		queue:  make(chan Notification, 256),
	}
	go s.worker()
	return s
}

// Dispatch enqueues a notification without blocking. When the queue is
// full the notification is dropped and logged; correctness of the
// escrow engine never depends on delivery.
func (s *NotificationService) Dispatch(n Notification) {
	select {
	case s.queue <- n:
	default:
		logrus.WithFields(logrus.Fields{
			"user_id": n.UserID,
			"type":    n.Type,
		}).Warn("Notification queue full, dropping notification")
	}
}

func (s *NotificationService) worker() {
	for n := range s.queue {
		s.deliver(n)
	}
}

func (s *NotificationService) deliver(n Notification) {
	var user models.User
	if err := s.db.First(&user, "id = ?", n.UserID).Error; err != nil {
		logrus.WithError(err).WithField("user_id", n.UserID).Error("Notification target not found")
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id":       user.ID,
		"type":          n.Type,
		"title":         n.Title,
		"whatsapp_link": s.WhatsAppLink(user.Phone, n.Message),
	}).Info("Notification dispatched")

	if n.SendEmail && user.Email != "" {
		if err := s.sendEmail(user.Email, n.Title, n.Message); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to send notification email")
		}
	}
}

// WhatsAppLink builds a wa.me deep link with the message prefilled.
// Actual WhatsApp delivery is out of scope; the link is surfaced to the
// frontend and logged.
func (s *NotificationService) WhatsAppLink(phone, message string) string {
	if phone == "" {
		return ""
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", phone, url.QueryEscape(message))
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPUsername == "" {
		logrus.WithField("to", to).Debug("SMTP not configured, skipping email")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)
	msg := []byte(fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.config.Email.FromName, s.config.Email.FromEmail, to, subject, body))

	addr := s.config.Email.SMTPHost + ":" + s.config.Email.SMTPPort
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

// Transition notifications

func (s *NotificationService) NotifyReservationCreated(t *models.Transaction) {
	s.Dispatch(Notification{
		UserID:    t.SellerID,
		Type:      "reservation_created",
		Title:     "Nova reserva no seu ingresso",
		Message:   fmt.Sprintf("Um comprador reservou seu ingresso por R$ %s. Você tem %d minutos para aceitar.", t.Amount.StringFixed(2), int(s.config.Escrow.ReservationWindow.Minutes())),
		SendEmail: true,
	})
}

func (s *NotificationService) NotifyReservationConfirmed(t *models.Transaction) {
	s.Dispatch(Notification{
		UserID:    t.BuyerID,
		Type:      "reservation_confirmed",
		Title:     "Reserva aceita, pagamento liberado",
		Message:   fmt.Sprintf("O vendedor aceitou sua reserva. Conclua o pagamento em até %d minutos: %s", int(s.config.Escrow.PaymentWindow.Minutes()), t.InvoiceURL),
		SendEmail: true,
	})
}

func (s *NotificationService) NotifyReservationRejected(t *models.Transaction, expired bool) {
	message := "O vendedor recusou sua reserva. O ingresso voltou a ficar disponível."
	if expired {
		message = "O vendedor não respondeu a tempo e sua reserva expirou. Nenhum valor foi cobrado."
	}
	s.Dispatch(Notification{
		UserID:    t.BuyerID,
		Type:      "reservation_rejected",
		Title:     "Reserva encerrada",
		Message:   message,
		SendEmail: true,
	})
}

func (s *NotificationService) NotifyPaymentReceived(t *models.Transaction) {
	s.Dispatch(Notification{
		UserID:    t.SellerID,
		Type:      "payment_received",
		Title:     "Pagamento recebido em custódia",
		Message:   fmt.Sprintf("O pagamento de R$ %s foi confirmado e está retido até a confirmação de entrada do comprador.", t.Amount.StringFixed(2)),
		SendEmail: true,
	})
}

func (s *NotificationService) NotifyFundsReleased(t *models.Transaction) {
	s.Dispatch(Notification{
		UserID:    t.SellerID,
		Type:      "funds_released",
		Title:     "Valor liberado na sua carteira",
		Message:   fmt.Sprintf("R$ %s foram creditados na sua carteira Repasso.", t.SellerAmount.StringFixed(2)),
		SendEmail: true,
	})
}

func (s *NotificationService) NotifyRefund(t *models.Transaction) {
	s.Dispatch(Notification{
		UserID:    t.BuyerID,
		Type:      "refund",
		Title:     "Reembolso processado",
		Message:   fmt.Sprintf("O reembolso de R$ %s foi solicitado ao meio de pagamento.", t.Amount.StringFixed(2)),
		SendEmail: true,
	})
}

func (s *NotificationService) NotifyDisputeOpened(d *models.Dispute, counterpartyID uuid.UUID) {
	s.Dispatch(Notification{
		UserID:    counterpartyID,
		Type:      "dispute_opened",
		Title:     "Uma disputa foi aberta",
		Message:   "Uma disputa foi aberta sobre sua transação. A equipe Repasso irá analisar as evidências.",
		SendEmail: true,
	})

	// Surface in the admin review queue as well
	notification := &models.AdminNotification{
		Type:                "dispute_opened",
		Title:               "New dispute awaiting review",
		Message:             fmt.Sprintf("Dispute %s opened on transaction %s (%s)", d.ID, d.TransactionID, d.Reason),
		Priority:            "high",
		RelatedResourceType: "dispute",
		RelatedResourceID:   &d.ID,
	}
	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).Error("Failed to create admin notification")
	}
}

func (s *NotificationService) NotifyDisputeResolved(d *models.Dispute, userID uuid.UUID) {
	s.Dispatch(Notification{
		UserID:    userID,
		Type:      "dispute_resolved",
		Title:     "Disputa resolvida",
		Message:   fmt.Sprintf("A disputa sobre sua transação foi resolvida: %s", d.Resolution),
		SendEmail: true,
	})
}

func (s *NotificationService) NotifyWithdrawalUpdate(w *models.Withdrawal) {
	title := "Atualização do seu saque"
	message := fmt.Sprintf("Seu saque de R$ %s está com status: %s.", w.Amount.StringFixed(2), w.Status)
	if w.Status == models.WithdrawalStatusRejected {
		message = fmt.Sprintf("Seu saque de R$ %s foi recusado (%s). O valor foi devolvido à sua carteira.", w.Amount.StringFixed(2), w.RejectionReason)
	}
	s.Dispatch(Notification{
		UserID:    w.UserID,
		Type:      "withdrawal_update",
		Title:     title,
		Message:   message,
		SendEmail: true,
	})
}
