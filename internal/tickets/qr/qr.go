package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/skip2/go-qrcode"

	"ms-railbooking/internal/models"
)

// Generator renders a ticket as a QR code PNG. The payload is encrypted
// so a scanned code can be validated server-side without exposing the
// passenger details.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

type payload struct {
	PNR         string `json:"pnr"`
	TrainNumber string `json:"train_number"`
	SeatNumber  string `json:"seat_number"`
	TravelDate  string `json:"travel_date"`
	Passenger   string `json:"passenger"`
}

// TicketPNG returns a 256x256 PNG QR encoding the encrypted ticket payload.
func (g *Generator) TicketPNG(ticket models.Ticket) ([]byte, error) {
	data, err := json.Marshal(payload{
		PNR:         ticket.PNR,
		TrainNumber: ticket.TrainNumber,
		SeatNumber:  ticket.SeatNumber,
		TravelDate:  ticket.TravelDate,
		Passenger:   ticket.PassengerUsername,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
