package payments

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/nurture/internal/domain/errkind"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stripe/stripe-go/v76/webhook"
)

const secret = "whsec_test"

func signed(payload string) string {
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, []byte(payload), secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func TestVerifierParse(t *testing.T) {
	Convey("Given a verifier", t, func() {
		v := NewVerifier(secret)

		Convey("When a checkout completes", func() {
			payload := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","amount_total":4900,"currency":"usd","payment_status":"paid","customer_details":{"email":"Ada@Example.com"}}}}`
			ev, err := v.Parse([]byte(payload), signed(payload))

			Convey("Then the payment is decoded", func() {
				So(err, ShouldBeNil)
				So(ev.Kind, ShouldEqual, KindCheckoutCompleted)
				So(ev.Payment.EventID, ShouldEqual, "evt_1")
				So(ev.Payment.Reference, ShouldEqual, "cs_1")
				So(ev.Payment.Amount, ShouldEqual, 4900)
				So(ev.Payment.Currency, ShouldEqual, "usd")
				So(ev.Payment.Status, ShouldEqual, "paid")
				So(ev.Payment.Email, ShouldEqual, "ada@example.com")
			})
		})

		Convey("When a subscription is cancelled", func() {
			payload := `{"id":"evt_2","object":"event","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","object":"subscription","status":"canceled","customer":"cus_1","metadata":{"email":"grace@example.com"}}}}`
			ev, err := v.Parse([]byte(payload), signed(payload))
			So(err, ShouldBeNil)
			So(ev.Kind, ShouldEqual, KindSubscriptionChanged)
			So(ev.Payment.Status, ShouldEqual, "canceled")
			So(ev.Payment.Email, ShouldEqual, "grace@example.com")
		})

		Convey("When an invoice payment fails", func() {
			payload := `{"id":"evt_3","object":"event","type":"invoice.payment_failed","data":{"object":{"id":"in_1","object":"invoice","amount_due":1500,"currency":"usd","customer_email":"x@example.com","status":"open"}}}`
			ev, err := v.Parse([]byte(payload), signed(payload))
			So(err, ShouldBeNil)
			So(ev.Kind, ShouldEqual, KindPaymentFailed)
			So(ev.Payment.Amount, ShouldEqual, 1500)
		})

		Convey("When the event type is not handled", func() {
			payload := `{"id":"evt_4","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`
			ev, err := v.Parse([]byte(payload), signed(payload))
			So(err, ShouldBeNil)
			So(ev.Kind, ShouldEqual, KindIgnored)
			So(ev.Payment.Type, ShouldEqual, "charge.refunded")
		})

		Convey("When the signature does not match", func() {
			payload := `{"id":"evt_5","object":"event","type":"checkout.session.completed","data":{"object":{}}}`
			header := signed(`{"id":"evt_other"}`)
			_, err := v.Parse([]byte(payload), header)

			Convey("Then it is a validation error", func() {
				So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, ErrInvalidSignature), ShouldBeTrue)
			})
		})

		Convey("When the header is missing or the secret unset", func() {
			_, err := v.Parse([]byte(`{}`), "")
			So(errors.Is(err, ErrInvalidSignature), ShouldBeTrue)
			_, err = NewVerifier("").Parse([]byte(`{}`), "t=1,v1=00")
			So(errors.Is(err, ErrInvalidSignature), ShouldBeTrue)
		})
	})
}
