// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"

	"github.com/printforge/printforge-backend/internal/config"
	"github.com/printforge/printforge-backend/internal/models"
)

// OrderSummary carries what the transactional mails mention.
type OrderSummary struct {
	OrderID     string
	ProductName string
	Quantity    int
	TotalAmount float64
	Status      models.OrderStatus
}

// Notifier is the outbound-email collaborator. Every call is
// fire-and-forget from the caller's perspective: failures are logged at
// the call site and never fail the enclosing operation.
type Notifier interface {
	SendOrderConfirmation(buyerEmail, buyerName string, order OrderSummary) error
	SendNewOrderToSeller(sellerEmail, sellerName string, order OrderSummary) error
	SendStatusUpdate(buyerEmail, buyerName string, order OrderSummary, newStatus models.OrderStatus) error
}

// NotificationService sends email over SMTP. Without SMTP credentials
// it logs the mail instead, which is the development behavior.
type NotificationService struct {
	config *config.Config
}

func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{config: cfg}
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`
<h2>Order Confirmed</h2>
<p>Hi {{.Name}},</p>
<p>Thank you for your order! We've received it and it's being processed.</p>
<p><strong>Order ID:</strong> {{.Order.OrderID}}<br>
<strong>Product:</strong> {{.Order.ProductName}}<br>
<strong>Quantity:</strong> {{.Order.Quantity}}<br>
<strong>Total:</strong> ₹{{printf "%.2f" .Order.TotalAmount}}<br>
<strong>Status:</strong> {{.Order.Status}}</p>
<p>Track your order on your <a href="{{.OrdersURL}}">orders page</a>.</p>
`))

var sellerTemplate = template.Must(template.New("seller").Parse(`
<h2>New Order Received</h2>
<p>Hi {{.Name}},</p>
<p>You've received a new order for your product. Please start processing
it as soon as possible.</p>
<p><strong>Order ID:</strong> {{.Order.OrderID}}<br>
<strong>Product:</strong> {{.Order.ProductName}}<br>
<strong>Quantity:</strong> {{.Order.Quantity}}<br>
<strong>Amount:</strong> ₹{{printf "%.2f" .Order.TotalAmount}}</p>
`))

var statusTemplate = template.Must(template.New("status").Parse(`
<h2>Order Update: {{.NewStatus}}</h2>
<p>Hi {{.Name}},</p>
<p>{{.Message}}</p>
<p><strong>Order ID:</strong> {{.Order.OrderID}}<br>
<strong>Product:</strong> {{.Order.ProductName}}</p>
<p>Track your order on your <a href="{{.OrdersURL}}">orders page</a>.</p>
`))

var statusMessages = map[models.OrderStatus]string{
	models.StatusPrinting:       "Great news! Your order is now being printed.",
	models.StatusPostProcessing: "Your print is complete and now in post-processing (cleaning, curing, etc.).",
	models.StatusShipped:        "Your order has been shipped! It's on its way to you.",
	models.StatusDelivered:      "Your order has been delivered. We hope you love it!",
}

func (s *NotificationService) SendOrderConfirmation(buyerEmail, buyerName string, order OrderSummary) error {
	body, err := render(confirmationTemplate, map[string]interface{}{
		"Name":      buyerName,
		"Order":     order,
		"OrdersURL": s.config.Frontend.BaseURL + "/orders",
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Order Confirmed - %s #%s", s.config.Email.FromName, shortID(order.OrderID))
	return s.send(buyerEmail, subject, body)
}

func (s *NotificationService) SendNewOrderToSeller(sellerEmail, sellerName string, order OrderSummary) error {
	body, err := render(sellerTemplate, map[string]interface{}{
		"Name":  sellerName,
		"Order": order,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("New Order Received! - %s #%s", s.config.Email.FromName, shortID(order.OrderID))
	return s.send(sellerEmail, subject, body)
}

func (s *NotificationService) SendStatusUpdate(buyerEmail, buyerName string, order OrderSummary, newStatus models.OrderStatus) error {
	message, ok := statusMessages[newStatus]
	if !ok {
		message = fmt.Sprintf("Your order status has been updated to: %s", newStatus)
	}

	body, err := render(statusTemplate, map[string]interface{}{
		"Name":      buyerName,
		"Order":     order,
		"NewStatus": newStatus,
		"Message":   message,
		"OrdersURL": s.config.Frontend.BaseURL + "/orders",
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Order Update - %s - %s #%s", newStatus, s.config.Email.FromName, shortID(order.OrderID))
	return s.send(buyerEmail, subject, body)
}

func (s *NotificationService) send(to, subject, htmlBody string) error {
	if s.config.Email.SMTPUsername == "" {
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("SMTP not configured, email logged only")
		return nil
	}

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.config.Email.FromName, s.config.Email.FromEmail, to, subject, htmlBody)

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)
	addr := s.config.Email.SMTPHost + ":" + s.config.Email.SMTPPort

	if err := smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("%w: failed to send email: %v", ErrExternalService, err)
	}

	return nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
