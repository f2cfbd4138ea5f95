package wire

// Status bytes. Every reply starts with one of these; values above 0x40
// are specific to a single operation.
const (
	ErrOK                   = 0x00
	ErrNoLogin              = 0x01
	ErrNoCharacterSelected  = 0x02
	ErrFailure              = 0x03
	ErrInvalidArgument      = 0x04
	ErrEmailAlreadyExists   = 0x05
	ErrAlreadyTaken         = 0x06
	ErrServerFull           = 0x07
	ErrAdministrativeLogoff = 0x08
	ErrInsufficientRights   = 0x09
	ErrTimeOut              = 0x0A

	LoginInvalidVersion = 0x40
	LoginBanned         = 0x42
	LoginInvalidTime    = 0x43

	RegisterInvalidVersion = 0x40
	RegisterExistsUsername = 0x41
	RegisterExistsEmail    = 0x42
	RegisterCaptchaWrong   = 0x43

	CreateInvalidHairstyle     = 0x40
	CreateInvalidHaircolor     = 0x41
	CreateInvalidGender        = 0x42
	CreateExistsName           = 0x43
	CreateTooMuchCharacters    = 0x44
	CreateInvalidSlot          = 0x45
	CreateAttributesOutOfRange = 0x46
	CreateAttributesTooHigh    = 0x47
	CreateAttributesTooLow     = 0x48

	ChatUnhandledCommand = 0x40
	ChatUsingBadWords    = 0x41

	// Game server registration statuses.
	DataVersionOK       = 0x00
	DataVersionOutdated = 0x01
	PasswordOK          = 0x00
	PasswordBad         = 0x01
)
