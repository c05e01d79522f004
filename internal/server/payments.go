package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/visadesk/internal/payment/domain"
)

// multipartOverhead is headroom for form fields on top of the voucher size.
const multipartOverhead = 1 << 20

func (s *Server) ListInvoicePayments(c *gin.Context) {
	resp, err := s.paymentSvc.ListByInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req paymentdomain.CreatePaymentRequest

	if isMultipart(c) {
		if err := s.parseMultipart(c); err != nil {
			AbortWithError(c, err)
			return
		}
		amount, err := formDecimal(c, "amount")
		if err != nil || amount == nil {
			AbortWithError(c, paymentdomain.ErrInvalidAmount)
			return
		}
		req = paymentdomain.CreatePaymentRequest{
			Amount:        *amount,
			PaymentMethod: strings.TrimSpace(formValue(c, "payment_method", "paymentMethod")),
			PaymentDate:   strings.TrimSpace(formValue(c, "payment_date", "paymentDate")),
			Remarks:       formValue(c, "remarks"),
		}
		voucher, closer, err := voucherFromForm(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if closer != nil {
			defer closer.Close()
		}
		req.Voucher = voucher
	} else if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvoiceID = c.Param("id")

	resp, err := s.paymentSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetPayment(c *gin.Context) {
	resp, err := s.paymentSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePayment(c *gin.Context) {
	var req paymentdomain.UpdatePaymentRequest

	if isMultipart(c) {
		if err := s.parseMultipart(c); err != nil {
			AbortWithError(c, err)
			return
		}
		amount, err := formDecimal(c, "amount")
		if err != nil {
			AbortWithError(c, paymentdomain.ErrInvalidAmount)
			return
		}
		req.Amount = amount
		req.PaymentMethod = optionalForm(c, "payment_method", "paymentMethod")
		req.PaymentDate = optionalForm(c, "payment_date", "paymentDate")
		req.Remarks = optionalForm(c, "remarks")

		voucher, closer, err := voucherFromForm(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if closer != nil {
			defer closer.Close()
		}
		req.Voucher = voucher
	} else if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePayment(c *gin.Context) {
	if err := s.paymentSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ReviewPayment(c *gin.Context) {
	var req paymentdomain.ReviewPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.Review(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == binding.MIMEMultipartPOSTForm
}

// parseMultipart reads the form under a body cap derived from the voucher
// size limit.
func (s *Server) parseMultipart(c *gin.Context) error {
	if s.business != nil {
		limit := s.business.Get().Voucher.MaxBytes + multipartOverhead
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	if err := c.Request.ParseMultipartForm(s.engine.MaxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return paymentdomain.ErrVoucherTooLarge
		}
		return invalidRequestError()
	}
	return nil
}

// voucherFromForm opens the optional "voucher" file. The returned closer is
// nil when no file was sent.
func voucherFromForm(c *gin.Context) (*paymentdomain.VoucherUpload, io.Closer, error) {
	fh, err := c.FormFile("voucher")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, invalidRequestError()
	}
	return openVoucher(fh)
}

func openVoucher(fh *multipart.FileHeader) (*paymentdomain.VoucherUpload, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &paymentdomain.VoucherUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	}, f, nil
}

func formValue(c *gin.Context, keys ...string) string {
	for _, key := range keys {
		if value, ok := c.GetPostForm(key); ok {
			return value
		}
	}
	return ""
}

func optionalForm(c *gin.Context, keys ...string) *string {
	for _, key := range keys {
		if value, ok := c.GetPostForm(key); ok {
			return &value
		}
	}
	return nil
}

func formDecimal(c *gin.Context, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
