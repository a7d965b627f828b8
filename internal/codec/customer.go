package codec

const (
	FieldOwner = "owner"
	FieldEmail = "email"
	FieldName  = "name"
	FieldPhone = "phone"
)

// CustomerRecord is a customer_ingestion work item.
type CustomerRecord struct {
	Name    *string
	Phone   *string
	Email   string
	OwnerID string
}

func DecodeCustomer(f Fields) (CustomerRecord, error) {
	owner, err := f.Required(FieldOwner)
	if err != nil {
		return CustomerRecord{}, err
	}
	email, err := f.Required(FieldEmail)
	if err != nil {
		return CustomerRecord{}, err
	}
	return CustomerRecord{
		OwnerID: owner,
		Email:   normalizeEmail(email),
		Name:    f.OptionalPtr(FieldName),
		Phone:   f.OptionalPtr(FieldPhone),
	}, nil
}

func EncodeCustomer(r CustomerRecord) Fields {
	f := Fields{
		FieldOwner: r.OwnerID,
		FieldEmail: r.Email,
	}
	if r.Name != nil {
		f[FieldName] = *r.Name
	}
	if r.Phone != nil {
		f[FieldPhone] = *r.Phone
	}
	return f
}
