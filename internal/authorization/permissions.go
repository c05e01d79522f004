package authorization

import "strings"

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleFinance  = "finance"
)

const (
	PermPassportView   = "passport.view"
	PermPassportCreate = "passport.create"
	PermPassportUpdate = "passport.update"
	PermPassportDelete = "passport.delete"

	PermVisaView   = "visa.view"
	PermVisaCreate = "visa.create"
	PermVisaUpdate = "visa.update"
	PermVisaDelete = "visa.delete"

	PermSupplierView   = "supplier.view"
	PermSupplierCreate = "supplier.create"
	PermSupplierUpdate = "supplier.update"
	PermSupplierDelete = "supplier.delete"

	PermAgentView   = "agent.view"
	PermAgentCreate = "agent.create"
	PermAgentUpdate = "agent.update"
	PermAgentDelete = "agent.delete"

	PermProductView   = "product.view"
	PermProductCreate = "product.create"
	PermProductUpdate = "product.update"
	PermProductDelete = "product.delete"

	PermQuoteView   = "product_quote.view"
	PermQuoteCreate = "product_quote.create"
	PermQuoteUpdate = "product_quote.update"
	PermQuoteDelete = "product_quote.delete"

	PermAgentPriceView   = "agent_price.view"
	PermAgentPriceCreate = "agent_price.create"
	PermAgentPriceUpdate = "agent_price.update"
	PermAgentPriceDelete = "agent_price.delete"

	PermOrderView   = "order.view"
	PermOrderCreate = "order.create"
	PermOrderUpdate = "order.update"
	PermOrderCancel = "order.cancel"

	PermOrderItemView   = "order_item.view"
	PermOrderItemCreate = "order_item.create"
	PermOrderItemUpdate = "order_item.update"
	PermOrderItemDelete = "order_item.delete"

	PermInvoiceView   = "invoice.view"
	PermInvoiceCreate = "invoice.create"
	PermInvoiceUpdate = "invoice.update"
	PermInvoiceDelete = "invoice.delete"
	PermInvoiceStatus = "invoice.status"
	PermInvoiceLink   = "invoice.link"

	PermPaymentView   = "payment.view"
	PermPaymentCreate = "payment.create"
	PermPaymentUpdate = "payment.update"
	PermPaymentDelete = "payment.delete"
	PermPaymentReview = "payment.review"

	PermUserView   = "user.view"
	PermUserCreate = "user.create"
	PermUserUpdate = "user.update"
	PermUserDelete = "user.delete"

	PermRoleView   = "role.view"
	PermRoleCreate = "role.create"
	PermRoleUpdate = "role.update"
	PermRoleDelete = "role.delete"

	PermOperationLogView = "operation_log.view"
)

type permissionDef struct {
	Code string
	Name string
}

// catalog is every permission the API checks.
var catalog = []permissionDef{
	{PermPassportView, "View passports"},
	{PermPassportCreate, "Create passports"},
	{PermPassportUpdate, "Update passports"},
	{PermPassportDelete, "Delete passports"},
	{PermVisaView, "View visas"},
	{PermVisaCreate, "Create visas"},
	{PermVisaUpdate, "Update visas"},
	{PermVisaDelete, "Delete visas"},
	{PermSupplierView, "View suppliers"},
	{PermSupplierCreate, "Create suppliers"},
	{PermSupplierUpdate, "Update suppliers"},
	{PermSupplierDelete, "Delete suppliers"},
	{PermAgentView, "View agents"},
	{PermAgentCreate, "Create agents"},
	{PermAgentUpdate, "Update agents"},
	{PermAgentDelete, "Delete agents"},
	{PermProductView, "View products"},
	{PermProductCreate, "Create products"},
	{PermProductUpdate, "Update products"},
	{PermProductDelete, "Delete products"},
	{PermQuoteView, "View product quotes"},
	{PermQuoteCreate, "Create product quotes"},
	{PermQuoteUpdate, "Update product quotes"},
	{PermQuoteDelete, "Delete product quotes"},
	{PermAgentPriceView, "View agent prices"},
	{PermAgentPriceCreate, "Create agent prices"},
	{PermAgentPriceUpdate, "Update agent prices"},
	{PermAgentPriceDelete, "Delete agent prices"},
	{PermOrderView, "View orders"},
	{PermOrderCreate, "Create orders"},
	{PermOrderUpdate, "Update orders"},
	{PermOrderCancel, "Cancel orders"},
	{PermOrderItemView, "View order items"},
	{PermOrderItemCreate, "Add order items"},
	{PermOrderItemUpdate, "Update order items"},
	{PermOrderItemDelete, "Delete order items"},
	{PermInvoiceView, "View invoices"},
	{PermInvoiceCreate, "Create invoices"},
	{PermInvoiceUpdate, "Update invoices"},
	{PermInvoiceDelete, "Delete invoices"},
	{PermInvoiceStatus, "Set invoice status"},
	{PermInvoiceLink, "Link orders to invoices"},
	{PermPaymentView, "View payments"},
	{PermPaymentCreate, "Record payments"},
	{PermPaymentUpdate, "Update payments"},
	{PermPaymentDelete, "Delete payments"},
	{PermPaymentReview, "Review payments"},
	{PermUserView, "View users"},
	{PermUserCreate, "Create users"},
	{PermUserUpdate, "Update users"},
	{PermUserDelete, "Delete users"},
	{PermRoleView, "View roles"},
	{PermRoleCreate, "Create roles"},
	{PermRoleUpdate, "Update roles"},
	{PermRoleDelete, "Delete roles"},
	{PermOperationLogView, "View operation logs"},
}

// defaultRoles are created on first start; admin always holds every permission.
var defaultRoles = []struct {
	Code        string
	Name        string
	Description string
	Permissions []string
}{
	{RoleAdmin, "Administrator", "Full access", nil},
	{RoleOperator, "Operator", "Catalog and order desk", []string{
		PermPassportView, PermPassportCreate, PermPassportUpdate,
		PermVisaView, PermVisaCreate, PermVisaUpdate,
		PermSupplierView, PermAgentView, PermProductView, PermQuoteView, PermAgentPriceView,
		PermOrderView, PermOrderCreate, PermOrderUpdate, PermOrderCancel,
		PermOrderItemView, PermOrderItemCreate, PermOrderItemUpdate, PermOrderItemDelete,
		PermInvoiceView,
	}},
	{RoleFinance, "Finance", "Invoicing and payment review", []string{
		PermPassportView, PermAgentView, PermOrderView, PermOrderItemView,
		PermInvoiceView, PermInvoiceCreate, PermInvoiceUpdate, PermInvoiceDelete, PermInvoiceStatus, PermInvoiceLink,
		PermPaymentView, PermPaymentCreate, PermPaymentUpdate, PermPaymentDelete, PermPaymentReview,
	}},
}

// ObjectOf returns the resource part of a permission code.
func ObjectOf(code string) string {
	object, _, _ := strings.Cut(code, ".")
	return object
}

func roleSubject(code string) string {
	return "role:" + strings.ToLower(strings.TrimSpace(code))
}

func userSubject(id string) string {
	return "user:" + id
}
